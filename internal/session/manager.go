package session

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"rollcall/internal/store"
)

// Layouts for the timestamp text persisted alongside each session and record.
// Stored data and CSV exports compare these as plain strings, so every writer
// must use the same layouts.
const (
	DateLayout = "1/2/2006"
	TimeLayout = "3:04:05 PM"
)

const (
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 6
)

// Session is the single process-wide attendance window. Only the Manager
// writes it; everyone else reads.
type Session struct {
	IsActive     bool   `json:"isActive"`
	StartTime    string `json:"startTime,omitempty"`
	Date         string `json:"date"`
	SessionCode  string `json:"sessionCode"`
	LecturerName string `json:"lecturerName"`
}

// Manager owns the active-session slot in the store.
type Manager struct {
	kv   store.KV
	now  func() time.Time
	diag func(key string, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithDiagnostic installs a callback invoked when a stored value fails to
// parse. Parse failures are otherwise swallowed: the slot reads as absent.
func WithDiagnostic(fn func(key string, err error)) Option {
	return func(m *Manager) { m.diag = fn }
}

// NewManager creates a manager over the given store.
func NewManager(kv store.KV, opts ...Option) *Manager {
	m := &Manager{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a new session for lecturerName with a fresh code, overwriting
// any published session — including one still active. Records of the
// discarded session stay in the ledger; only its submission gate is lost.
func (m *Manager) Start(ctx context.Context, lecturerName string) (Session, error) {
	now := m.now()
	s := Session{
		IsActive:     true,
		StartTime:    now.Format(TimeLayout),
		Date:         now.Format(DateLayout),
		SessionCode:  GenerateCode(),
		LecturerName: lecturerName,
	}
	if err := m.publish(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// End deactivates the published session and republishes it with every other
// field preserved. Returns ok=false when no session has ever been started.
// Ending an already ended session leaves it unchanged.
func (m *Manager) End(ctx context.Context) (Session, bool, error) {
	s, ok, err := m.Current(ctx)
	if err != nil || !ok {
		return Session{}, false, err
	}
	s.IsActive = false
	if err := m.publish(ctx, s); err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

// Current reads the published session slot. A malformed stored value reads as
// absent after reporting through the diagnostic callback.
func (m *Manager) Current(ctx context.Context) (Session, bool, error) {
	raw, ok, err := m.kv.Get(ctx, store.KeyActiveSession)
	if err != nil || !ok {
		return Session{}, false, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		if m.diag != nil {
			m.diag(store.KeyActiveSession, err)
		}
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *Manager) publish(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.kv.Set(ctx, store.KeyActiveSession, raw)
}

// GenerateCode returns a 6-character uppercase base36 access code. Codes are
// short-lived classroom tokens, not secrets; collisions across sessions are
// tolerated.
func GenerateCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.Intn(len(codeAlphabet))])
	}
	return b.String()
}
