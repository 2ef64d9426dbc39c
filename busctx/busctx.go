// Package busctx carries per-call bus options through a context.
package busctx

import "context"

type ctxIndex int

const (
	ctxIndexVerbose ctxIndex = iota
	ctxIndexTarget
)

// IsVerbose reports whether register accesses of a transaction should be logged.
func IsVerbose(ctx context.Context) bool {
	val, ok := ctx.Value(ctxIndexVerbose).(bool)
	return ok && val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, ctxIndexVerbose, value)
}

// Target returns the device name attached to ctx, used to label log lines.
func Target(ctx context.Context) string {
	val, _ := ctx.Value(ctxIndexTarget).(string)
	return val
}

func WithTarget(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ctxIndexTarget, name)
}
