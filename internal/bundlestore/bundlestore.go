// Package bundlestore contains the extension host that applies the converted
// documents of the content blockers by writing them into files.
package bundlestore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AdguardTeam/cbupdater/internal/cblocker"
	"github.com/AdguardTeam/cbupdater/internal/notifier"
	"github.com/AdguardTeam/cbupdater/internal/optslog"
	"github.com/AdguardTeam/cbupdater/internal/rulegroup"
	"github.com/AdguardTeam/golibs/errors"
	renameio "github.com/google/renameio/v2"
)

// fileExt is the extension of the files with the converted documents.
const fileExt = ".json"

// filePerm is the permissions of the files with the converted documents.
const filePerm = 0o644

// Config is the configuration structure for a [*Store].
type Config struct {
	// Logger is used to log the applied documents.  It must not be nil.
	Logger *slog.Logger

	// Publisher is used to publish the [*cblocker.ExtensionUpdated] events.  It
	// must not be nil.
	Publisher notifier.Publisher

	// Dir is the directory for the files.  It must exist.
	Dir string
}

// Store writes every converted document into the file named after its bundle
// and acknowledges it with a [*cblocker.ExtensionUpdated] event.
type Store struct {
	logger    *slog.Logger
	publisher notifier.Publisher
	dir       string
}

// New returns a new properly initialized *Store.  c must not be nil and must be
// valid.
func New(c *Config) (s *Store) {
	return &Store{
		logger:    c.Logger,
		publisher: c.Publisher,
		dir:       c.Dir,
	}
}

// type check
var _ notifier.Handler = (*Store)(nil)

// HandleEvent implements the [notifier.Handler] interface for *Store.
func (s *Store) HandleEvent(ctx context.Context, ev cblocker.Event) (err error) {
	switch ev := ev.(type) {
	case *cblocker.DispatchRequired:
		return s.apply(ctx, ev)
	case *cblocker.UpdateCompleted:
		s.logger.InfoContext(
			ctx,
			"update completed",
			"rules", ev.RulesCount,
			"advanced_rules", ev.AdvancedBlockingRulesCount,
			"over_limit", ev.RulesOverLimit,
		)
	default:
		// Go on.
	}

	return nil
}

// apply writes the document of ev and publishes the acknowledgement.
func (s *Store) apply(ctx context.Context, ev *cblocker.DispatchRequired) (err error) {
	defer func() { err = errors.Annotate(err, "applying bundle %q: %w", ev.BundleID) }()

	p, err := s.Path(ev.BundleID)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return err
	}

	err = renameio.WriteFile(p, []byte(ev.JSON), filePerm)
	if err != nil {
		return fmt.Errorf("writing: %w", err)
	}

	optslog.Debug2(ctx, s.logger, "bundle written", "path", p, "len", len(ev.JSON))

	return s.publisher.Publish(ctx, &cblocker.ExtensionUpdated{
		Info: ev.Info.Clone(),
	})
}

// errBadBundleID is returned when a bundle identifier can't be used as a file
// name.
const errBadBundleID errors.Error = "bad bundle id"

// Path returns the path to the file of the bundle.
func (s *Store) Path(id rulegroup.BundleID) (p string, err error) {
	name := string(id)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, "..") {
		return "", fmt.Errorf("%w: %q", errBadBundleID, name)
	}

	return filepath.Join(s.dir, name+fileExt), nil
}
