package authflow

import (
	"context"
	stderrors "errors"

	"github.com/goliatone/go-errors"
)

const (
	textCodeInvalidCredentials = "INVALID_CREDENTIALS"
	textCodeAccountExists      = "ACCOUNT_EXISTS"
	textCodeNetworkUnavailable = "NETWORK_UNAVAILABLE"
	textCodeProviderRejected   = "PROVIDER_REJECTED"
	textCodeCancelled          = "CANCELLED"
	textCodeSessionStorage     = "SESSION_STORAGE"
)

// ErrorKind classifies provider failures for consumers observing a Failed
// state. Cancelled never reaches consumers; superseded requests simply have
// no observable effect.
type ErrorKind string

const (
	ErrorKindInvalidCredentials ErrorKind = "invalid_credentials"
	ErrorKindAccountExists      ErrorKind = "account_exists"
	ErrorKindNetworkUnavailable ErrorKind = "network_unavailable"
	ErrorKindProviderRejected   ErrorKind = "provider_rejected"
	ErrorKindCancelled          ErrorKind = "cancelled"
)

// ErrInvalidCredentials is returned when the provider rejects the supplied
// credentials, and for locally invalid credential payloads.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(errors.CodeBadRequest)

// ErrAccountExists is returned when a signup collides with an existing account.
var ErrAccountExists = errors.New("account already exists", errors.CategoryConflict).
	WithTextCode(textCodeAccountExists).
	WithCode(errors.CodeConflict)

// ErrNetworkUnavailable is returned when the identity provider cannot be
// reached, including synthesized operation timeouts.
var ErrNetworkUnavailable = errors.New("identity provider unreachable", errors.CategoryOperation).
	WithTextCode(textCodeNetworkUnavailable)

// ErrProviderRejected is returned when the provider refuses the operation for
// any other reason.
var ErrProviderRejected = errors.New("identity provider rejected request", errors.CategoryAuth).
	WithTextCode(textCodeProviderRejected)

// ErrCancelled marks results of superseded or aborted requests.
var ErrCancelled = errors.New("authentication request cancelled", errors.CategoryOperation).
	WithTextCode(textCodeCancelled)

// ErrSessionStorage wraps corrupt or unreadable session storage.
var ErrSessionStorage = errors.New("session storage failure", errors.CategoryInternal).
	WithTextCode(textCodeSessionStorage)

// WithMetadata returns a per-call copy of base carrying meta. The sentinels
// above are shared package state and must never be mutated: the copy wraps
// base through Source, so errors.Is and KindOf keep matching.
func WithMetadata(base *errors.Error, meta map[string]any) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = base
	return clone.WithMetadata(meta)
}

// KindOf maps an adapter error to its ErrorKind. Context cancellation counts
// as Cancelled, deadline expiry as NetworkUnavailable, anything unrecognized
// as ProviderRejected.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrInvalidCredentials):
		return ErrorKindInvalidCredentials
	case stderrors.Is(err, ErrAccountExists):
		return ErrorKindAccountExists
	case stderrors.Is(err, ErrNetworkUnavailable),
		stderrors.Is(err, context.DeadlineExceeded):
		return ErrorKindNetworkUnavailable
	case stderrors.Is(err, ErrCancelled),
		stderrors.Is(err, context.Canceled):
		return ErrorKindCancelled
	default:
		return ErrorKindProviderRejected
	}
}
