package authflow

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Provider is the uniform capability boundary over an external identity
// service. Implementations may block; latency and ordering of responses are
// not guaranteed and are reconciled by the Machine's staleness guard.
type Provider interface {
	Login(ctx context.Context, creds Credentials) (Identity, error)
	Signup(ctx context.Context, displayName string, creds Credentials) (Identity, error)
	FederatedLogin(ctx context.Context, token FederatedToken) (Identity, error)

	// Logout is best-effort: remote failures are logged by the machine and
	// never gate the local state transition.
	Logout(ctx context.Context) error
}

// SessionStore persists the last authenticated identity in a single fixed
// slot. Load returns (nil, nil) when no session exists; errors indicate
// corrupt or unreadable backing storage only. Load must be safe to call at
// startup before any other component is initialized.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHFLOW "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHFLOW "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
