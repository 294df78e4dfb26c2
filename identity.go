package authflow

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Credentials carry the transient email/password pair for login and signup.
// They are adapter input only and are never persisted.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the credential payload before it ever reaches a provider.
func (c Credentials) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(
			&c.Email,
			validation.Required,
			validation.Length(6, 100),
			is.Email,
		),
		validation.Field(
			&c.Password,
			validation.Required,
			validation.Length(8, 100),
		),
	)
	if err != nil {
		return WithMetadata(ErrInvalidCredentials, map[string]any{
			"reason": err.Error(),
		})
	}
	return nil
}

// FederatedToken is an opaque provider-issued token (e.g. a Google ID token)
// passed through to the adapter untouched.
type FederatedToken string

// Identity holds the authenticated user's provider-confirmed attributes. It
// is an immutable value: each successful auth operation replaces it wholesale.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	ProviderID  string `json:"provider_id"`
}

func (i Identity) String() string {
	return fmt.Sprintf("id=%s provider=%s email=%s", i.ID, i.ProviderID, i.Email)
}

// Session is the durable record of the last authenticated Identity.
type Session struct {
	Identity Identity  `json:"identity"`
	IssuedAt time.Time `json:"issued_at"`
}
