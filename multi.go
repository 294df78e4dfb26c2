package authflow

import (
	"context"
	stderrors "errors"
)

// MultiProvider routes password operations to one provider and federated
// logins to another, presenting both as a single adapter. Logout fans out to
// both providers best-effort, mirroring clients that must sign out of the
// identity service and the federated SDK.
type MultiProvider struct {
	password  Provider
	federated Provider
	logger    Logger
}

var _ Provider = (*MultiProvider)(nil)

// MultiProviderOption customizes the composite provider.
type MultiProviderOption func(*MultiProvider)

// WithMultiProviderLogger overrides the logger used for fan-out logout.
func WithMultiProviderLogger(logger Logger) MultiProviderOption {
	return func(p *MultiProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewMultiProvider composes a password provider and a federated provider.
// Either may be nil; operations without a backing provider are rejected.
func NewMultiProvider(password, federated Provider, opts ...MultiProviderOption) *MultiProvider {
	p := &MultiProvider{
		password:  password,
		federated: federated,
		logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

func (p *MultiProvider) Login(ctx context.Context, creds Credentials) (Identity, error) {
	if p.password == nil {
		return Identity{}, WithMetadata(ErrProviderRejected, map[string]any{
			"reason": "no password provider configured",
		})
	}
	return p.password.Login(ctx, creds)
}

func (p *MultiProvider) Signup(ctx context.Context, displayName string, creds Credentials) (Identity, error) {
	if p.password == nil {
		return Identity{}, WithMetadata(ErrProviderRejected, map[string]any{
			"reason": "no password provider configured",
		})
	}
	return p.password.Signup(ctx, displayName, creds)
}

func (p *MultiProvider) FederatedLogin(ctx context.Context, token FederatedToken) (Identity, error) {
	if p.federated == nil {
		return Identity{}, WithMetadata(ErrProviderRejected, map[string]any{
			"reason": "no federated provider configured",
		})
	}
	return p.federated.FederatedLogin(ctx, token)
}

// Logout signs out of both providers. Each failure is logged and the joined
// error returned; callers treat remote logout as best-effort.
func (p *MultiProvider) Logout(ctx context.Context) error {
	var passwordErr, federatedErr error

	if p.password != nil {
		if passwordErr = p.password.Logout(ctx); passwordErr != nil {
			p.logger.Warn("password provider logout failed: %v", passwordErr)
		}
	}
	if p.federated != nil {
		if federatedErr = p.federated.Logout(ctx); federatedErr != nil {
			p.logger.Warn("federated provider logout failed: %v", federatedErr)
		}
	}

	return stderrors.Join(passwordErr, federatedErr)
}
