package agdhttp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
)

// ParseResourceURL parses an absolute URL of a downloadable resource, such as
// a filter list.  The URL must either be a valid HTTP(S) URL with a host or a
// file URL with a path.  All returned errors have the underlying type
// [*url.Error].
func ParseResourceURL(s string) (u *url.URL, err error) {
	u, err = url.Parse(s)
	if err != nil {
		return nil, err
	}

	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == urlutil.SchemeFile:
		if u.Path == "" {
			return nil, newURLError(s, errors.Error("empty path"))
		}
	case !urlutil.IsValidHTTPURLScheme(scheme):
		return nil, newURLError(s, fmt.Errorf("bad scheme %q", u.Scheme))
	case u.Host == "":
		return nil, newURLError(s, errors.Error("empty host"))
	}

	return u, nil
}

// newURLError returns a parsing *url.Error for the URL string.
func newURLError(s string, err error) (urlErr *url.Error) {
	return &url.Error{
		Op:  "parse",
		URL: s,
		Err: err,
	}
}
