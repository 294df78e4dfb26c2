package authflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

type commandKind int

const (
	cmdLogin commandKind = iota
	cmdSignup
	cmdFederated
	cmdLogout
)

func (k commandKind) String() string {
	switch k {
	case cmdLogin:
		return "login"
	case cmdSignup:
		return "signup"
	case cmdFederated:
		return "federated_login"
	case cmdLogout:
		return "logout"
	}
	return "unknown"
}

type command struct {
	kind        commandKind
	creds       Credentials
	displayName string
	token       FederatedToken
}

type completion struct {
	rid      uint64
	identity Identity
	err      error
}

// MachineOption customizes machine construction.
type MachineOption func(*Machine)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) MachineOption {
	return func(m *Machine) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithLogger overrides the logger used for discarded results and best-effort
// storage failures.
func WithLogger(logger Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTimeout bounds each provider call. On expiry a NetworkUnavailable
// result is synthesized for the active request without waiting for the
// adapter; the in-flight call runs to completion and is discarded.
func WithTimeout(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithQueueSize sets the command mailbox capacity.
func WithQueueSize(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithPublisherBuffer sets the per-subscriber channel capacity.
func WithPublisherBuffer(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.pubBuffer = n
		}
	}
}

// Machine owns the live AuthState and mints RequestIds. Commands are
// fire-and-forget; their outcome is observed through Subscribe, keeping a
// single state-update path. All transition logic executes on one run loop
// goroutine; provider calls are the only operations that run off-loop, so a
// new command can always be accepted while one is outstanding.
type Machine struct {
	provider Provider
	store    SessionStore
	logger   Logger
	now      func() time.Time
	timeout  time.Duration

	queueSize int
	pubBuffer int
	publisher *Publisher

	commands    chan command
	completions chan completion
	done        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
	started     atomic.Bool

	// owned by the run loop; activeRid == 0 means no operation in flight
	ridCounter  uint64
	activeRid   uint64
	activeTimer *time.Timer
}

// NewMachine builds a machine around explicit collaborators. There is no
// global registry: the provider and store are owned by the machine instance.
func NewMachine(provider Provider, store SessionStore, opts ...MachineOption) *Machine {
	m := &Machine{
		provider:  provider,
		store:     store,
		logger:    defLogger{},
		now:       time.Now,
		queueSize: 64,
		pubBuffer: 16,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.commands = make(chan command, m.queueSize)
	m.completions = make(chan completion, m.queueSize)
	m.publisher = NewPublisher(AuthState{Phase: PhaseUnknown}, WithSubscriberBuffer(m.pubBuffer))

	return m
}

// Start loads the persisted session and begins processing commands. The load
// happens synchronously and touches no network: a persisted session for
// identity I brings the machine to Authenticated(I) without any provider
// call. A storage failure is logged and treated as "no session".
func (m *Machine) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("machine already started", errors.CategoryOperation)
	}

	session, err := m.store.Load(ctx)

	var initial AuthState
	switch {
	case err != nil:
		m.logger.Warn("session load failed, starting unauthenticated: %v", err)
		initial = AuthState{Phase: PhaseUnauthenticated}
	case session == nil:
		initial = AuthState{Phase: PhaseUnauthenticated}
	default:
		identity := session.Identity
		initial = AuthState{Phase: PhaseAuthenticated, Identity: &identity}
	}

	m.setState(initial)
	go m.run(ctx)

	return nil
}

// CurrentState returns a synchronous snapshot of the live AuthState. The
// publisher's latest value is the single authoritative state cell.
func (m *Machine) CurrentState() AuthState {
	return m.publisher.Latest()
}

// Subscribe registers a consumer for the replay-latest + live state stream.
func (m *Machine) Subscribe() *Subscription {
	return m.publisher.Subscribe()
}

// Login requests an email/password authentication. Fire-and-forget: the
// result surfaces through the subscription stream.
func (m *Machine) Login(ctx context.Context, creds Credentials) {
	m.enqueue(ctx, command{kind: cmdLogin, creds: creds})
}

// Signup requests account creation followed by authentication.
func (m *Machine) Signup(ctx context.Context, displayName string, creds Credentials) {
	m.enqueue(ctx, command{kind: cmdSignup, displayName: displayName, creds: creds})
}

// FederatedLogin authenticates with an opaque provider-issued token.
func (m *Machine) FederatedLogin(ctx context.Context, token FederatedToken) {
	m.enqueue(ctx, command{kind: cmdFederated, token: token})
}

// Logout clears the local session. A no-op when already unauthenticated.
func (m *Machine) Logout(ctx context.Context) {
	m.enqueue(ctx, command{kind: cmdLogout})
}

// Close stops the run loop and terminates every subscription.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.started.Load() {
			<-m.stopped
		}
		m.publisher.Close()
	})
}

func (m *Machine) enqueue(ctx context.Context, cmd command) {
	select {
	case m.commands <- cmd:
	case <-ctx.Done():
		m.logger.Warn("%s command dropped: %v", cmd.kind, ctx.Err())
	case <-m.done:
		m.logger.Debug("%s command dropped: machine closed", cmd.kind)
	}
}

func (m *Machine) run(ctx context.Context) {
	defer close(m.stopped)

	for {
		select {
		case cmd := <-m.commands:
			if cmd.kind == cmdLogout {
				m.handleLogout(ctx)
			} else {
				m.beginAuth(ctx, cmd)
			}
		case res := <-m.completions:
			m.handleCompletion(ctx, res)
		case <-ctx.Done():
			return
		case <-m.done:
			return
		}
	}
}

// beginAuth mints a new RequestId and moves to Authenticating. Accepting a
// command while one is in flight supersedes it: the old call runs to
// completion but its result will no longer match activeRid.
func (m *Machine) beginAuth(ctx context.Context, cmd command) {
	m.ridCounter++
	rid := m.ridCounter

	if m.activeRid != 0 {
		m.logger.Debug("request %d supersedes in-flight request %d", rid, m.activeRid)
	}
	m.stopTimer()
	m.activeRid = rid
	m.setState(AuthState{Phase: PhaseAuthenticating, RequestID: rid})

	if err := validateCommand(cmd); err != nil {
		m.handleCompletion(ctx, completion{rid: rid, err: err})
		return
	}

	if m.timeout > 0 {
		m.activeTimer = time.AfterFunc(m.timeout, func() {
			m.deliver(completion{rid: rid, err: WithMetadata(ErrNetworkUnavailable, map[string]any{
				"reason":  "operation timed out",
				"timeout": m.timeout.String(),
			})})
		})
	}

	go func() {
		identity, err := m.invoke(ctx, cmd)
		m.deliver(completion{rid: rid, identity: identity, err: err})
	}()
}

// handleCompletion applies a provider result, discarding it unless its
// RequestId is still the active one. This tie-break is what makes "at most
// one effective authentication" observable correctness rather than a hint.
func (m *Machine) handleCompletion(ctx context.Context, res completion) {
	if res.rid != m.activeRid {
		m.logger.Debug("discarding stale result for request %d (active %d)", res.rid, m.activeRid)
		return
	}

	m.stopTimer()
	m.activeRid = 0

	if res.err != nil {
		kind := KindOf(res.err)
		if kind == ErrorKindCancelled {
			// cancellation is never surfaced as a failure
			m.logger.Debug("request %d cancelled", res.rid)
			m.setState(AuthState{Phase: PhaseUnauthenticated})
			return
		}

		m.logger.Info("authentication request %d failed: %v", res.rid, res.err)
		m.setState(AuthState{
			Phase:     PhaseFailed,
			RequestID: res.rid,
			Kind:      kind,
			Err:       res.err,
		})
		return
	}

	identity := res.identity
	session := &Session{Identity: identity, IssuedAt: m.now()}
	if err := m.store.Save(ctx, session); err != nil {
		// in-memory state is authoritative; persistence is best-effort
		m.logger.Error("session save failed: %v", err)
	}

	m.setState(AuthState{Phase: PhaseAuthenticated, Identity: &identity})
}

// handleLogout transitions to Unauthenticated immediately. Store clear and
// remote logout run concurrently and independently; neither gates the local
// transition.
func (m *Machine) handleLogout(ctx context.Context) {
	if m.CurrentState().IsUnauthenticated() {
		m.logger.Debug("logout ignored: already unauthenticated")
		return
	}

	if m.activeRid != 0 {
		m.logger.Debug("logout supersedes in-flight request %d", m.activeRid)
		m.stopTimer()
		m.activeRid = 0
	}

	m.setState(AuthState{Phase: PhaseUnauthenticated})

	bg := context.WithoutCancel(ctx)
	go func() {
		if err := m.store.Clear(bg); err != nil {
			m.logger.Error("session clear failed: %v", err)
		}
	}()
	go func() {
		if err := m.provider.Logout(bg); err != nil {
			m.logger.Warn("remote logout failed: %v", err)
		}
	}()
}

func (m *Machine) invoke(ctx context.Context, cmd command) (Identity, error) {
	switch cmd.kind {
	case cmdLogin:
		return m.provider.Login(ctx, cmd.creds)
	case cmdSignup:
		return m.provider.Signup(ctx, cmd.displayName, cmd.creds)
	case cmdFederated:
		return m.provider.FederatedLogin(ctx, cmd.token)
	}
	return Identity{}, WithMetadata(ErrProviderRejected, map[string]any{
		"reason": "unsupported command",
	})
}

func (m *Machine) deliver(res completion) {
	select {
	case m.completions <- res:
	case <-m.stopped:
	}
}

func (m *Machine) setState(state AuthState) {
	m.publisher.Publish(state)
}

func (m *Machine) stopTimer() {
	if m.activeTimer != nil {
		m.activeTimer.Stop()
		m.activeTimer = nil
	}
}

func validateCommand(cmd command) error {
	switch cmd.kind {
	case cmdLogin:
		return cmd.creds.Validate()
	case cmdSignup:
		if err := validation.Validate(cmd.displayName,
			validation.Required,
			validation.Length(1, 200),
		); err != nil {
			return WithMetadata(ErrInvalidCredentials, map[string]any{
				"field":  "display_name",
				"reason": err.Error(),
			})
		}
		return cmd.creds.Validate()
	case cmdFederated:
		if cmd.token == "" {
			return WithMetadata(ErrInvalidCredentials, map[string]any{
				"field":  "token",
				"reason": "cannot be blank",
			})
		}
	}
	return nil
}
