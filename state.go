package authflow

import "fmt"

// Phase is the coarse authentication phase of an AuthState.
type Phase string

const (
	// PhaseUnknown is the initial phase, before the session store load completes.
	PhaseUnknown Phase = "unknown"
	// PhaseUnauthenticated means no user is logged in.
	PhaseUnauthenticated Phase = "unauthenticated"
	// PhaseAuthenticating means a request is in flight for RequestID.
	PhaseAuthenticating Phase = "authenticating"
	// PhaseAuthenticated means Identity is the current user.
	PhaseAuthenticated Phase = "authenticated"
	// PhaseFailed means the request identified by RequestID failed with Kind.
	PhaseFailed Phase = "failed"
)

// AuthState is the single source of truth for the current authentication
// state. Exactly one value is current at any instant; it is owned and mutated
// only by the Machine and observed read-only by consumers.
type AuthState struct {
	Phase Phase

	// RequestID is set while Authenticating and on Failed states, identifying
	// the command that produced them.
	RequestID uint64

	// Identity is set only while Authenticated.
	Identity *Identity

	// Kind and Err describe the failure on Failed states.
	Kind ErrorKind
	Err  error
}

func (s AuthState) IsUnknown() bool         { return s.Phase == PhaseUnknown }
func (s AuthState) IsUnauthenticated() bool { return s.Phase == PhaseUnauthenticated }
func (s AuthState) IsAuthenticating() bool  { return s.Phase == PhaseAuthenticating }
func (s AuthState) IsAuthenticated() bool   { return s.Phase == PhaseAuthenticated }
func (s AuthState) IsFailed() bool          { return s.Phase == PhaseFailed }

func (s AuthState) String() string {
	switch s.Phase {
	case PhaseAuthenticating:
		return fmt.Sprintf("authenticating(rid=%d)", s.RequestID)
	case PhaseAuthenticated:
		if s.Identity != nil {
			return fmt.Sprintf("authenticated(%s)", s.Identity.ID)
		}
		return "authenticated"
	case PhaseFailed:
		return fmt.Sprintf("failed(kind=%s rid=%d)", s.Kind, s.RequestID)
	default:
		return string(s.Phase)
	}
}
