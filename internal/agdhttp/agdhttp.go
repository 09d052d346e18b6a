// Package agdhttp contains common constants, functions, and types for working
// with HTTP in the updater.
package agdhttp

import "github.com/AdguardTeam/cbupdater/internal/version"

// HTTP header value constants.
const (
	HdrValApplicationJSON = "application/json"
	HdrValTextPlain       = "text/plain"
)

// UserAgent returns the ID of the updater as a User-Agent string.  It is also
// used as the value of the Server HTTP header of the debug API.
func UserAgent() (ua string) {
	return version.UserAgent()
}
