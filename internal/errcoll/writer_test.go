package errcoll_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/AdguardTeam/cbupdater/internal/errcoll"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
)

func TestWriterErrorCollector(t *testing.T) {
	buf := &bytes.Buffer{}
	c := errcoll.NewWriterErrorCollector(buf)
	c.Collect(context.Background(), errors.Error("test error"))

	wantRx := `.*: errcoll/writer_test.go:[0-9]+: caught error: test error.*`
	got := buf.String()
	assert.Regexp(t, wantRx, got)
}

func TestCollect(t *testing.T) {
	buf := &bytes.Buffer{}
	c := errcoll.NewWriterErrorCollector(buf)

	l := slogutil.NewDiscardLogger()

	errcoll.Collect(context.Background(), c, l, "converting", errors.Error("test error"))

	assert.Contains(t, buf.String(), "caught error: converting: test error")
}
