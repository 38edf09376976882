package gamesync

import "context"

// ProgressFunc is called after every committed page with the running totals.
type ProgressFunc func(Result)

type progressKey struct{}

// WithProgress attaches fn to ctx. Runs started with the returned context
// report each committed page to it.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress calls the ProgressFunc attached to ctx, if any.
func ReportProgress(ctx context.Context, res Result) {
	if fn, ok := ctx.Value(progressKey{}).(ProgressFunc); ok && fn != nil {
		fn(res)
	}
}
