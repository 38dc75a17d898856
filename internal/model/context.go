package model

import "context"

type contextKey int

const (
	userKey contextKey = iota
	cliKey
)

// WithUser attaches the acting user name to the context
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the acting user, or "" for anonymous callers
func UserFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// WithCLI marks the context as a command-line invocation
func WithCLI(ctx context.Context) context.Context {
	return context.WithValue(ctx, cliKey, true)
}

// IsCLI reports whether the call originates from the command line
func IsCLI(ctx context.Context) bool {
	cli, _ := ctx.Value(cliKey).(bool)
	return cli
}
