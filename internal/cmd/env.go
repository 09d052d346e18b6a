package cmd

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/cbupdater/internal/version"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/netutil/urlutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/c2h5oh/datasize"
	"github.com/caarlos0/env/v7"
	"github.com/getsentry/sentry-go"
)

// environment represents the configuration that is kept in the environment.
type environment struct {
	FilterIndexURL *urlutil.URL `env:"FILTER_INDEX_URL,notEmpty"`

	BundleOutputDir string `env:"BUNDLE_OUTPUT_DIR" envDefault:"./bundles/"`
	ConfPath        string `env:"CONFIG_PATH" envDefault:"./config.yaml"`
	ConverterPath   string `env:"CONVERTER_PATH,notEmpty"`
	FilterCachePath string `env:"FILTER_CACHE_PATH" envDefault:"./filters/"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"text"`
	SentryDSN       string `env:"SENTRY_DSN" envDefault:"stderr"`

	ListenAddr net.IP `env:"LISTEN_ADDR" envDefault:"127.0.0.1"`

	FilterMaxSize datasize.ByteSize `env:"FILTER_MAX_SIZE" envDefault:"64MB"`

	ListenPort uint16 `env:"LISTEN_PORT" envDefault:"8181"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	FilteringDisabled strictBool `env:"FILTERING_DISABLED" envDefault:"0"`
	LogTimestamp      strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
}

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	errs := []error{
		validate.NotEmpty("BUNDLE_OUTPUT_DIR", envs.BundleOutputDir),
		validate.NotEmpty("CONVERTER_PATH", envs.ConverterPath),
		validate.NotEmpty("FILTER_CACHE_PATH", envs.FilterCachePath),
		validate.Positive("FILTER_MAX_SIZE", envs.FilterMaxSize),
	}

	err = validateFilterIndexURL(envs.FilterIndexURL)
	if err != nil {
		errs = append(errs, fmt.Errorf("FILTER_INDEX_URL: %w", err))
	}

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	return errors.Join(errs...)
}

// validateFilterIndexURL returns an error if u is neither a valid HTTP(S) URL
// nor a file URI.
func validateFilterIndexURL(u *urlutil.URL) (err error) {
	if u == nil {
		return errors.ErrNoValue
	}

	if strings.EqualFold(u.Scheme, urlutil.SchemeFile) {
		return nil
	}

	if !urlutil.IsValidHTTPURLScheme(u.Scheme) {
		return errors.Error("not a valid http(s) url or file uri")
	}

	return urlutil.ValidateHTTPURL(&u.URL)
}

// buildErrColl builds and returns an error collector from environment.
func (envs *environment) buildErrColl() (errColl errcoll.Interface, err error) {
	dsn := envs.SentryDSN
	if dsn == "stderr" {
		return errcoll.NewWriterErrorCollector(os.Stderr), nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version.Version(),
	})
	if err != nil {
		return nil, err
	}

	return errcoll.NewSentryErrorCollector(cli), nil
}

// debugAddr returns the address of the debug HTTP service.
func (envs *environment) debugAddr() (addr string) {
	return netutil.JoinHostPort(envs.ListenAddr.String(), envs.ListenPort)
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the encoding.TextUnmarshaler interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	if len(b) == 1 {
		switch b[0] {
		case '0':
			*sb = false

			return nil
		case '1':
			*sb = true

			return nil
		default:
			// Go on and return an error.
		}
	}

	return fmt.Errorf("invalid value %q, supported: %q, %q", b, "0", "1")
}
