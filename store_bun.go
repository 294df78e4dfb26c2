package authflow

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// sessionSlot is the single fixed slot key: one session per installation.
const sessionSlot = "current"

type sessionRecord struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:ses"`

	Slot      string    `bun:"slot,pk" json:"slot"`
	Payload   []byte    `bun:"payload,notnull" json:"payload"`
	IssuedAt  time.Time `bun:"issued_at,notnull" json:"issued_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// BunStore persists the session in a single-row Bun-managed table.
type BunStore struct {
	db     *bun.DB
	logger Logger
}

var _ SessionStore = (*BunStore)(nil)

// BunStoreOption customizes store construction.
type BunStoreOption func(*BunStore)

// WithBunStoreLogger overrides the store logger.
func WithBunStoreLogger(logger Logger) BunStoreOption {
	return func(s *BunStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewBunStore creates a session store on top of an existing bun.DB.
func NewBunStore(db *bun.DB, opts ...BunStoreOption) *BunStore {
	s := &BunStore{
		db:     db,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Init creates the backing table when missing. Call once at startup.
func (s *BunStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*sessionRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create session table")
	}
	return nil
}

func (s *BunStore) Load(ctx context.Context) (*Session, error) {
	record := new(sessionRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("slot = ?", sessionSlot).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read session slot")
	}

	var identity Identity
	if err := json.Unmarshal(record.Payload, &identity); err != nil {
		return nil, WithMetadata(ErrSessionStorage, map[string]any{
			"reason": "corrupt session payload: " + err.Error(),
		})
	}

	return &Session{
		Identity: identity,
		IssuedAt: record.IssuedAt,
	}, nil
}

func (s *BunStore) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return WithMetadata(ErrSessionStorage, map[string]any{
			"reason": "session is nil",
		})
	}

	payload, err := json.Marshal(session.Identity)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to encode session identity")
	}

	record := &sessionRecord{
		Slot:      sessionSlot,
		Payload:   payload,
		IssuedAt:  session.IssuedAt,
		UpdatedAt: time.Now(),
	}

	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (slot) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("issued_at = EXCLUDED.issued_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write session slot")
	}
	return nil
}

func (s *BunStore) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("slot = ?", sessionSlot).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to clear session slot")
	}
	return nil
}

// OpenSQLite opens a Bun SQLite database suitable for BunStore and the local
// provider. In-memory DSNs are pinned to a single connection so every query
// sees the same database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
	}

	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqldb.SetMaxOpenConns(1)
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
