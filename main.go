package main

import "github.com/AdguardTeam/cbupdater/internal/cmd"

func main() {
	cmd.Main()
}
