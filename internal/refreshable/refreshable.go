// Package refreshable contains the download logic common to the filter lists
// and the filter category index: the data is either read from a local file or
// downloaded from an HTTP(S) URL and cached on disk.
package refreshable

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AdguardTeam/cbupdater/internal/agdhttp"
	"github.com/AdguardTeam/cbupdater/internal/optslog"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/httphdr"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/c2h5oh/datasize"
	renameio "github.com/google/renameio/v2"
)

// ErrEmpty is returned when the downloaded data is empty.  The cache file is
// not replaced in that case.
const ErrEmpty errors.Error = "empty data, not resetting"

// Config is the configuration structure for a *Refreshable.
type Config struct {
	// Logger is used to log the refreshes.  It must not be nil.
	Logger *slog.Logger

	// URL is the location of the data.  It must be either a file URL or an
	// HTTP(S) URL.
	URL *url.URL

	// ID is the name of the resource used in errors, for example the ID of a
	// filter list.  It must not be empty.
	ID string

	// CachePath is the path to the file caching the data downloaded from an
	// HTTP(S) URL.  It is not used with file URLs.
	CachePath string

	// Staleness is the time after which the cache file is considered stale.
	Staleness time.Duration

	// Timeout is the timeout of the HTTP requests.
	Timeout time.Duration

	// MaxSize is the maximum size of the data.  It must be positive.
	MaxSize datasize.ByteSize
}

// Refreshable is a resource that can refresh itself from a file or a URL.
type Refreshable struct {
	logger    *slog.Logger
	http      *agdhttp.Client
	url       *url.URL
	id        string
	cachePath string
	staleness time.Duration
	maxSize   datasize.ByteSize
}

// New returns a new *Refreshable.  c must not be nil.
func New(c *Config) (r *Refreshable, err error) {
	switch {
	case c.URL == nil:
		return nil, fmt.Errorf("refreshable %q: url: %w", c.ID, errors.ErrNoValue)
	case !isFileURL(c.URL) && !urlutil.IsValidHTTPURLScheme(c.URL.Scheme):
		return nil, fmt.Errorf("refreshable %q: bad url scheme %q", c.ID, c.URL.Scheme)
	}

	return &Refreshable{
		logger: c.Logger,
		http: agdhttp.NewClient(&agdhttp.ClientConfig{
			Timeout: c.Timeout,
		}),
		url:       c.URL,
		id:        c.ID,
		cachePath: c.CachePath,
		staleness: c.Staleness,
		maxSize:   c.MaxSize,
	}, nil
}

// isFileURL returns true if u is a file URL.
func isFileURL(u *url.URL) (ok bool) {
	return strings.EqualFold(u.Scheme, urlutil.SchemeFile)
}

// Refresh returns the current data of the resource.  If acceptStale is true
// and the cache file exists, the data is read from it regardless of its
// staleness.
func (r *Refreshable) Refresh(ctx context.Context, acceptStale bool) (data []byte, err error) {
	defer func() { err = errors.Annotate(err, "%s: %w", r.id) }()

	if isFileURL(r.url) {
		return r.readLocal(ctx)
	}

	return r.readCachedOrDownload(ctx, acceptStale)
}

// readLocal reads the data from the file the URL points to.
func (r *Refreshable) readLocal(ctx context.Context) (data []byte, err error) {
	p := r.url.Path
	optslog.Debug1(ctx, r.logger, "reading local file", "path", p)

	data, err = r.readFile(p, true, time.Time{})
	if err == nil && data == nil {
		err = fs.ErrNotExist
	}

	if err != nil {
		return nil, fmt.Errorf("reading file %q: %w", p, err)
	}

	return data, nil
}

// readCachedOrDownload returns the data from the cache file if it is fresh
// enough and downloads it otherwise.
func (r *Refreshable) readCachedOrDownload(
	ctx context.Context,
	acceptStale bool,
) (data []byte, err error) {
	now := time.Now()

	data, err = r.readFile(r.cachePath, acceptStale, now)
	if err != nil {
		return nil, fmt.Errorf("reading cache file %q: %w", r.cachePath, err)
	} else if data != nil {
		optslog.Debug1(ctx, r.logger, "using cache file", "path", r.cachePath)

		return data, nil
	}

	ru := urlutil.RedactUserinfo(r.url)
	r.logger.InfoContext(ctx, "downloading", "url", ru)

	data, err = r.download(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("downloading from %q: %w", ru, err)
	}

	return data, nil
}

// readFile returns the contents of the file at p.  data is nil if the file
// doesn't exist or if acceptStale is false and the modification time of the
// file shows that it is stale relative to now.
func (r *Refreshable) readFile(p string, acceptStale bool, now time.Time) (data []byte, err error) {
	// #nosec G304 -- The path is either the configured cache path or the path
	// from a configured file URL.
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("opening: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	if !acceptStale {
		fi, statErr := f.Stat()
		if statErr != nil {
			return nil, fmt.Errorf("getting file info: %w", statErr)
		}

		if !fi.ModTime().Add(r.staleness).After(now) {
			return nil, nil
		}
	}

	data, err = io.ReadAll(ioutil.LimitReader(f, r.maxSize.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	return data, nil
}

// download requests the data from the URL and atomically replaces the cache
// file with it.  The access and modification times of the cache file are set
// to now.
func (r *Refreshable) download(ctx context.Context, now time.Time) (data []byte, err error) {
	tmpFile, err := renameio.TempFile(renameio.TempDir(filepath.Dir(r.cachePath)), r.cachePath)
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() { err = r.finishTmpFile(err, tmpFile, now) }()

	resp, err := r.http.Get(ctx, r.url)
	if err != nil {
		return nil, fmt.Errorf("requesting: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	optslog.Debug3(
		ctx,
		r.logger,
		"got response",
		"code", resp.StatusCode,
		"content_length", resp.ContentLength,
		"server", resp.Header.Get(httphdr.Server),
	)

	err = agdhttp.CheckStatus(resp, http.StatusOK)
	if err != nil {
		// Don't wrap the error, since it is informative enough as is.
		return nil, err
	}

	buf := &bytes.Buffer{}
	_, err = io.Copy(io.MultiWriter(buf, tmpFile), ioutil.LimitReader(resp.Body, r.maxSize.Bytes()))
	if err != nil {
		return nil, agdhttp.WrapServerError(fmt.Errorf("reading body: %w", err), resp)
	}

	if buf.Len() == 0 {
		return nil, agdhttp.WrapServerError(ErrEmpty, resp)
	}

	return buf.Bytes(), nil
}

// finishTmpFile removes the temporary file if returned is not nil and replaces
// the cache file with it otherwise.
func (r *Refreshable) finishTmpFile(
	returned error,
	tmpFile *renameio.PendingFile,
	now time.Time,
) (err error) {
	if returned != nil {
		return errors.WithDeferred(returned, tmpFile.Cleanup())
	}

	err = tmpFile.CloseAtomicallyReplace()
	if err != nil {
		return errors.WithDeferred(nil, err)
	}

	return errors.WithDeferred(nil, os.Chtimes(r.cachePath, now, now))
}
