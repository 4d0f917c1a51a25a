package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetTokenLookup() string
	GetAuthScheme() string
	GetContextKey() string
}

// TokenIssuer mints session pairs.
type TokenIssuer interface {
	Issue(ctx context.Context, principal PrincipalRef) (SessionPair, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(format, args))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(format, args))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] AUTH " + line(format, args))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(format, args))
}

// line renders a message followed by key=value pairs.
func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteByte('\n')
	return b.String()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() Logger {
	return noopLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
