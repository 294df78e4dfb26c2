package authflow_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/mock"
)

// MockProvider implements authflow.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Login(ctx context.Context, creds authflow.Credentials) (authflow.Identity, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(authflow.Identity), args.Error(1)
}

func (m *MockProvider) Signup(ctx context.Context, displayName string, creds authflow.Credentials) (authflow.Identity, error) {
	args := m.Called(ctx, displayName, creds)
	return args.Get(0).(authflow.Identity), args.Error(1)
}

func (m *MockProvider) FederatedLogin(ctx context.Context, token authflow.FederatedToken) (authflow.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(authflow.Identity), args.Error(1)
}

func (m *MockProvider) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSessionStore implements authflow.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Load(ctx context.Context) (*authflow.Session, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*authflow.Session)
	return session, args.Error(1)
}

func (m *MockSessionStore) Save(ctx context.Context, session *authflow.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// scriptedProvider drives machine tests with controllable latency.
type scriptedProvider struct {
	login     func(ctx context.Context, creds authflow.Credentials) (authflow.Identity, error)
	signup    func(ctx context.Context, displayName string, creds authflow.Credentials) (authflow.Identity, error)
	federated func(ctx context.Context, token authflow.FederatedToken) (authflow.Identity, error)
	logout    func(ctx context.Context) error
}

func (p *scriptedProvider) Login(ctx context.Context, creds authflow.Credentials) (authflow.Identity, error) {
	if p.login == nil {
		return authflow.Identity{}, authflow.ErrProviderRejected
	}
	return p.login(ctx, creds)
}

func (p *scriptedProvider) Signup(ctx context.Context, displayName string, creds authflow.Credentials) (authflow.Identity, error) {
	if p.signup == nil {
		return authflow.Identity{}, authflow.ErrProviderRejected
	}
	return p.signup(ctx, displayName, creds)
}

func (p *scriptedProvider) FederatedLogin(ctx context.Context, token authflow.FederatedToken) (authflow.Identity, error) {
	if p.federated == nil {
		return authflow.Identity{}, authflow.ErrProviderRejected
	}
	return p.federated(ctx, token)
}

func (p *scriptedProvider) Logout(ctx context.Context) error {
	if p.logout == nil {
		return nil
	}
	return p.logout(ctx)
}

// spyLogger records log lines for assertions.
type spyLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *spyLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+": "+fmt.Sprintf(format, args...))
}

func (l *spyLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *spyLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *spyLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *spyLogger) Error(format string, args ...any) { l.record("error", format, args...) }

func (l *spyLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
