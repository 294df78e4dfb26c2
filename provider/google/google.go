// Package google implements a federated authflow.Provider that verifies
// Google-issued ID tokens offline against Google's published JWK set. The
// token is minted by the client-side sign-in flow; this provider only checks
// the signature, issuer, and audience, and maps the claims to an Identity.
package google

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-errors"
)

const (
	defaultJWKSetURL = "https://www.googleapis.com/oauth2/v3/certs"

	// Google mints tokens under both issuer forms.
	issuerHTTPS = "https://accounts.google.com"
	issuerBare  = "accounts.google.com"
)

// ProviderID identifies identities issued by this provider.
const ProviderID = "google"

// Config holds Google token verification settings.
type Config struct {
	// ClientID is the OAuth client the ID token must be addressed to.
	ClientID string

	// JWKSetURL overrides the Google certs endpoint (useful for tests).
	JWKSetURL string

	// RefreshInterval and RefreshTimeout tune the background JWKS refresh.
	RefreshInterval time.Duration
	RefreshTimeout  time.Duration

	Logger authflow.Logger
}

// Provider validates Google ID tokens.
type Provider struct {
	config Config
	jwks   *keyfunc.JWKS
	logger authflow.Logger
}

var _ authflow.Provider = (*Provider)(nil)

// New creates a Google provider and starts the background JWKS refresh.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("google: client id is required", errors.CategoryValidation)
	}
	if cfg.JWKSetURL == "" {
		cfg.JWKSetURL = defaultJWKSetURL
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 10 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	jwks, err := keyfunc.Get(cfg.JWKSetURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("google: background JWK set refresh failed: %v", err)
		},
		RefreshInterval:   cfg.RefreshInterval,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    cfg.RefreshTimeout,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "google: failed to fetch JWK set")
	}

	return &Provider{
		config: cfg,
		jwks:   jwks,
		logger: logger,
	}, nil
}

// Close stops the background JWKS refresh.
func (p *Provider) Close() {
	p.jwks.EndBackground()
}

type idTokenClaims struct {
	jwt.RegisteredClaims

	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *Provider) FederatedLogin(ctx context.Context, token authflow.FederatedToken) (authflow.Identity, error) {
	claims := &idTokenClaims{}
	parsed, err := jwt.ParseWithClaims(string(token), claims, p.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(p.config.ClientID),
	)
	if err != nil {
		return authflow.Identity{}, classifyParseError(err)
	}
	if !parsed.Valid {
		return authflow.Identity{}, authflow.WithMetadata(authflow.ErrInvalidCredentials, map[string]any{
			"reason": "token failed validation",
		})
	}

	if claims.Issuer != issuerHTTPS && claims.Issuer != issuerBare {
		return authflow.Identity{}, authflow.WithMetadata(authflow.ErrProviderRejected, map[string]any{
			"reason": "unexpected issuer",
			"issuer": claims.Issuer,
		})
	}
	if claims.Subject == "" {
		return authflow.Identity{}, authflow.WithMetadata(authflow.ErrProviderRejected, map[string]any{
			"reason": "token missing subject",
		})
	}

	return authflow.Identity{
		ID:          claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PhotoURL:    claims.Picture,
		ProviderID:  ProviderID,
	}, nil
}

func (p *Provider) Login(ctx context.Context, creds authflow.Credentials) (authflow.Identity, error) {
	return authflow.Identity{}, authflow.WithMetadata(authflow.ErrProviderRejected, map[string]any{
		"reason": "google provider only supports federated login",
	})
}

func (p *Provider) Signup(ctx context.Context, displayName string, creds authflow.Credentials) (authflow.Identity, error) {
	return authflow.Identity{}, authflow.WithMetadata(authflow.ErrProviderRejected, map[string]any{
		"reason": "google provider only supports federated login",
	})
}

// Logout is a no-op: Google sign-out happens in the client SDK, there is no
// server-side session to revoke here.
func (p *Provider) Logout(ctx context.Context) error {
	return nil
}

func classifyParseError(err error) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenExpired),
		stderrors.Is(err, jwt.ErrTokenNotValidYet),
		stderrors.Is(err, jwt.ErrTokenMalformed),
		stderrors.Is(err, jwt.ErrTokenSignatureInvalid),
		stderrors.Is(err, jwt.ErrTokenInvalidAudience):
		return authflow.WithMetadata(authflow.ErrInvalidCredentials, map[string]any{
			"reason": err.Error(),
		})
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, context.Canceled):
		return authflow.WithMetadata(authflow.ErrNetworkUnavailable, map[string]any{
			"reason": err.Error(),
		})
	default:
		return authflow.WithMetadata(authflow.ErrProviderRejected, map[string]any{
			"reason": err.Error(),
		})
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
