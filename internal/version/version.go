// Package version contains the build information of the content-blocker
// updater.
package version

import "fmt"

// These can be set by the linker, for example:
//
//	go build -ldflags '-X github.com/AdguardTeam/cbupdater/internal/version.version=v1.2.3'
var (
	branch     string
	committime string
	revision   string
	version    string

	name = "cbupdater"
)

// Branch returns the compiled-in value of the Git branch.
func Branch() (b string) {
	return branch
}

// CommitTime returns the compiled-in value of the commit time as a string.
func CommitTime() (t string) {
	return committime
}

// Revision returns the compiled-in value of the Git revision.
func Revision() (r string) {
	return revision
}

// Version returns the compiled-in value of the version as a string.
func Version() (v string) {
	return version
}

// Name returns the compiled-in value of the program name.
func Name() (n string) {
	return name
}

// UserAgent returns the value of the User-Agent header for the requests made
// by the updater, for example "cbupdater/v1.2.3".
func UserAgent() (ua string) {
	v := version
	if v == "" {
		v = "dev"
	}

	return fmt.Sprintf("%s/%s", name, v)
}
