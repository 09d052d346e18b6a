// Package optslog contains helpers for the debug and trace logs on the hot
// paths of the updater, such as the routing of every single rule.  They only
// build the attributes when the level is enabled.
package optslog

import (
	"context"
	"log/slog"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Trace2 logs msg with two attributes at [slogutil.LevelTrace] if that level is
// enabled for l.
func Trace2[T1, T2 any](
	ctx context.Context,
	l *slog.Logger,
	msg string,
	name1 string, arg1 T1,
	name2 string, arg2 T2,
) {
	if l.Enabled(ctx, slogutil.LevelTrace) {
		l.Log(ctx, slogutil.LevelTrace, msg, name1, arg1, name2, arg2)
	}
}

// Debug1 logs msg with one attribute at [slog.LevelDebug] if that level is
// enabled for l.
func Debug1[T1 any](ctx context.Context, l *slog.Logger, msg, name1 string, arg1 T1) {
	if l.Enabled(ctx, slog.LevelDebug) {
		l.DebugContext(ctx, msg, name1, arg1)
	}
}

// Debug2 is like [Debug1] but with two attributes.
func Debug2[T1, T2 any](
	ctx context.Context,
	l *slog.Logger,
	msg string,
	name1 string, arg1 T1,
	name2 string, arg2 T2,
) {
	if l.Enabled(ctx, slog.LevelDebug) {
		l.DebugContext(ctx, msg, name1, arg1, name2, arg2)
	}
}

// Debug3 is like [Debug1] but with three attributes.
func Debug3[T1, T2, T3 any](
	ctx context.Context,
	l *slog.Logger,
	msg string,
	name1 string, arg1 T1,
	name2 string, arg2 T2,
	name3 string, arg3 T3,
) {
	if l.Enabled(ctx, slog.LevelDebug) {
		l.DebugContext(ctx, msg, name1, arg1, name2, arg2, name3, arg3)
	}
}

// Debug4 is like [Debug1] but with four attributes.
func Debug4[T1, T2, T3, T4 any](
	ctx context.Context,
	l *slog.Logger,
	msg string,
	name1 string, arg1 T1,
	name2 string, arg2 T2,
	name3 string, arg3 T3,
	name4 string, arg4 T4,
) {
	if l.Enabled(ctx, slog.LevelDebug) {
		l.DebugContext(ctx, msg, name1, arg1, name2, arg2, name3, arg3, name4, arg4)
	}
}
