package presence

import (
	"context"
	"errors"
	"strings"
	"time"

	"rollcall/internal/ledger"
	"rollcall/internal/session"
)

// Submission failures, in the order Submit checks them. All are recoverable
// and meant to surface as inline messages, never as crashes.
var (
	ErrNetworkRequired = errors.New("network connection required: connect to the classroom network")
	ErrNoActiveSession = errors.New("no active attendance session: wait for the lecturer to start one")
	ErrInvalidCode     = errors.New("invalid session code: check the code displayed by the lecturer")
	ErrAlreadyMarked   = errors.New("attendance already marked for this session")
)

// Status reports whether a student is already marked for the current session.
type Status struct {
	AlreadyMarked bool   `json:"already_marked"`
	At            string `json:"at,omitempty"`
}

// Result is returned on a successful submission.
type Result struct {
	Timestamp   string `json:"timestamp"`
	Date        string `json:"date"`
	SessionCode string `json:"sessionCode"`
}

// Client gates a student's submitted code against the published session and
// appends to the ledger on success.
type Client struct {
	sessions *session.Manager
	records  *ledger.Ledger
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a presence client over the shared session slot and ledger.
func NewClient(sessions *session.Manager, records *ledger.Ledger, opts ...Option) *Client {
	c := &Client{sessions: sessions, records: records, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckStatus reports whether studentID has a record for the current session.
// Only an active session counts: once the session ends or a new one starts,
// the student is unmarked again from the client's point of view.
func (c *Client) CheckStatus(ctx context.Context, studentID string) (Status, error) {
	s, ok, err := c.sessions.Current(ctx)
	if err != nil {
		return Status{}, err
	}
	if !ok || !s.IsActive {
		return Status{}, nil
	}
	rec, found, err := c.records.Find(ctx, studentID, s.SessionCode)
	if err != nil {
		return Status{}, err
	}
	if !found {
		return Status{}, nil
	}
	return Status{AlreadyMarked: true, At: rec.Timestamp}, nil
}

// Submit validates the claim and appends a record on success. The
// networkConnected flag is a caller-supplied claim, not a probe: the source
// system's connectivity gate is cosmetic and is kept that way.
func (c *Client) Submit(ctx context.Context, studentID, studentName, submittedCode string, networkConnected bool) (Result, error) {
	if !networkConnected {
		return Result{}, ErrNetworkRequired
	}
	s, ok, err := c.sessions.Current(ctx)
	if err != nil {
		return Result{}, err
	}
	if !ok || !s.IsActive {
		return Result{}, ErrNoActiveSession
	}
	if !strings.EqualFold(strings.TrimSpace(submittedCode), s.SessionCode) {
		return Result{}, ErrInvalidCode
	}

	now := c.now()
	rec := ledger.Record{
		StudentID:   studentID,
		StudentName: studentName,
		Timestamp:   now.Format(session.TimeLayout),
		Date:        now.Format(session.DateLayout),
		SessionCode: s.SessionCode,
	}
	if err := c.records.Append(ctx, rec); err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return Result{}, ErrAlreadyMarked
		}
		return Result{}, err
	}
	return Result{Timestamp: rec.Timestamp, Date: rec.Date, SessionCode: rec.SessionCode}, nil
}
