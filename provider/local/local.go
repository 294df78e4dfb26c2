// Package local implements an email/password authflow.Provider backed by a
// Bun-managed user table. It is the self-hosted counterpart to federated
// providers: accounts are created through Signup and verified with bcrypt.
package local

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-authflow"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

// ProviderID identifies identities issued by this provider.
const ProviderID = "password"

// User is the stored account model.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id,omitempty"`
	DisplayName  string    `bun:"display_name" json:"display_name,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PhotoURL     string    `bun:"photo_url" json:"photo_url,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	CreatedAt    time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func (u *User) identity() authflow.Identity {
	return authflow.Identity{
		ID:          u.ID.String(),
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
		ProviderID:  ProviderID,
	}
}

// Option customizes provider construction.
type Option func(*Provider)

// WithLogger overrides the provider logger.
func WithLogger(logger authflow.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithBcryptCost overrides the hashing cost (useful for tests).
func WithBcryptCost(cost int) Option {
	return func(p *Provider) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			p.cost = cost
		}
	}
}

// Provider verifies and registers email/password accounts.
type Provider struct {
	db     *bun.DB
	logger authflow.Logger
	cost   int
}

var _ authflow.Provider = (*Provider)(nil)

// New creates a local provider on top of an existing bun.DB.
func New(db *bun.DB, opts ...Option) *Provider {
	p := &Provider{
		db:   db,
		cost: 14,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Init creates the users table when missing. Call once at startup.
func (p *Provider) Init(ctx context.Context) error {
	_, err := p.db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create users table")
	}
	return nil
}

func (p *Provider) Login(ctx context.Context, creds authflow.Credentials) (authflow.Identity, error) {
	email := normalizeEmail(creds.Email)

	user := new(User)
	err := p.db.NewSelect().
		Model(user).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			// indistinguishable from a bad password on purpose
			return authflow.Identity{}, authflow.WithMetadata(authflow.ErrInvalidCredentials, map[string]any{
				"identifier": email,
			})
		}
		return authflow.Identity{}, errors.Wrap(err, errors.CategoryInternal, "failed to look up user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return authflow.Identity{}, authflow.WithMetadata(authflow.ErrInvalidCredentials, map[string]any{
			"identifier": email,
		})
	}

	return user.identity(), nil
}

func (p *Provider) Signup(ctx context.Context, displayName string, creds authflow.Credentials) (authflow.Identity, error) {
	if err := validateSignup(displayName, creds); err != nil {
		return authflow.Identity{}, err
	}

	email := normalizeEmail(creds.Email)

	exists, err := p.db.NewSelect().
		Model((*User)(nil)).
		Where("email = ?", email).
		Exists(ctx)
	if err != nil {
		return authflow.Identity{}, errors.Wrap(err, errors.CategoryInternal, "failed to check for existing account")
	}
	if exists {
		return authflow.Identity{}, authflow.WithMetadata(authflow.ErrAccountExists, map[string]any{
			"identifier": email,
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), p.cost)
	if err != nil {
		return authflow.Identity{}, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		ID:           newUserID(email),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hash),
	}

	if _, err := p.db.NewInsert().Model(user).Exec(ctx); err != nil {
		// unique constraint race between the existence check and the insert
		if strings.Contains(strings.ToUpper(err.Error()), "UNIQUE") {
			return authflow.Identity{}, authflow.WithMetadata(authflow.ErrAccountExists, map[string]any{
				"identifier": email,
			})
		}
		return authflow.Identity{}, errors.Wrap(err, errors.CategoryConflict, "could not create user")
	}

	return user.identity(), nil
}

func (p *Provider) FederatedLogin(ctx context.Context, token authflow.FederatedToken) (authflow.Identity, error) {
	return authflow.Identity{}, authflow.WithMetadata(authflow.ErrProviderRejected, map[string]any{
		"reason": "password provider does not accept federated tokens",
	})
}

// Logout is a no-op: the provider is stateless, there is nothing to revoke.
func (p *Provider) Logout(ctx context.Context) error {
	return nil
}

// newUserID derives a deterministic UUID from the email so repeated imports
// of the same account agree on identity, falling back to a random id.
func newUserID(email string) uuid.UUID {
	if id, err := hashid.NewUUID(email); err == nil {
		return id
	}
	return uuid.New()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateSignup(displayName string, creds authflow.Credentials) error {
	if err := validation.Validate(displayName,
		validation.Required,
		validation.Length(1, 200),
	); err != nil {
		return authflow.WithMetadata(authflow.ErrInvalidCredentials, map[string]any{
			"field":  "display_name",
			"reason": err.Error(),
		})
	}
	return creds.Validate()
}
