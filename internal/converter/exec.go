package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/AdguardTeam/cbupdater/internal/optslog"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/c2h5oh/datasize"
)

// maxStderrLen is the maximum length of the standard error output of the
// converter included into errors.
const maxStderrLen = 1024

// ExecConfig is the configuration structure for an [Exec].
type ExecConfig struct {
	// Logger is used to log the conversions.  It must not be nil.
	Logger *slog.Logger

	// Path is the path to the converter executable.  It must not be empty.
	Path string

	// RulesLimit is the maximum number of rules in a single converted
	// document.  It must be positive.
	RulesLimit int

	// MaxOutputSize is the maximum size of the report of the converter.  It
	// must be positive.
	MaxOutputSize datasize.ByteSize
}

// Exec is the [Interface] implementation that runs an external converter
// executable.  The rules are written to its standard input one per line and
// the JSON report is read from its standard output.
type Exec struct {
	logger        *slog.Logger
	path          string
	rulesLimit    int
	maxOutputSize datasize.ByteSize
}

// NewExec returns a new properly initialized *Exec.  c must not be nil and
// must be valid.
func NewExec(c *ExecConfig) (e *Exec) {
	return &Exec{
		logger:        c.Logger,
		path:          c.Path,
		rulesLimit:    c.RulesLimit,
		maxOutputSize: c.MaxOutputSize,
	}
}

// type check
var _ Interface = (*Exec)(nil)

// Convert implements the [Interface] interface for *Exec.  The process is
// killed when ctx is canceled.
func (e *Exec) Convert(ctx context.Context, rules []string, advanced bool) (res *Result, err error) {
	defer func() { err = errors.Annotate(err, "running converter: %w") }()

	// #nosec G204 -- The path comes from the trusted environment.
	cmd := exec.CommandContext(
		ctx,
		e.path,
		"-limit="+strconv.Itoa(e.rulesLimit),
		"-advancedBlocking="+strconv.FormatBool(advanced),
	)

	stderr := &bytes.Buffer{}
	cmd.Stdin = bytes.NewReader(rulesData(rules))
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("getting stdout: %w", err)
	}

	optslog.Debug2(ctx, e.logger, "converting", "rules", len(rules), "advanced", advanced)

	err = cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("starting: %w", err)
	}

	out, readErr := io.ReadAll(ioutil.LimitReader(stdout, e.maxOutputSize.Bytes()))
	if readErr != nil {
		// Make sure the process doesn't block on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	err = cmd.Wait()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}

		return nil, fmt.Errorf("%w: %q", err, truncate(stderr.String(), maxStderrLen))
	} else if readErr != nil {
		return nil, fmt.Errorf("reading report: %w", readErr)
	}

	if len(out) == 0 {
		return nil, nil
	}

	res = &Result{}
	err = json.Unmarshal(out, res)
	if err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}

	optslog.Debug4(
		ctx,
		e.logger,
		"converted",
		"total", res.TotalConvertedCount,
		"converted", res.ConvertedCount,
		"errors", res.ErrorsCount,
		"over_limit", res.OverLimit,
	)

	return res, nil
}

// truncate returns s cut to at most n bytes.
func truncate(s string, n int) (t string) {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
