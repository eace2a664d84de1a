package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"rollcall/internal/store"
)

// ErrDuplicate is returned by Append when a record for the same student and
// session code is already in the ledger.
var ErrDuplicate = errors.New("attendance already recorded for this session")

// Record is one accepted presence claim. Records are immutable once appended
// and removed only by Clear.
type Record struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Timestamp   string `json:"timestamp"`
	Date        string `json:"date"`
	// SessionCode is empty on legacy records written before codes existed.
	SessionCode string `json:"sessionCode,omitempty"`
}

// Ledger is the append-only store of attendance records, persisted as a
// single JSON array in the underlying KV.
type Ledger struct {
	kv   store.KV
	diag func(key string, err error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDiagnostic installs a callback invoked when the stored array fails to
// parse. The ledger then reads as empty rather than failing.
func WithDiagnostic(fn func(key string, err error)) Option {
	return func(l *Ledger) { l.diag = fn }
}

// New creates a ledger over the given store.
func New(kv store.KV, opts ...Option) *Ledger {
	l := &Ledger{kv: kv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds rec to the end of the ledger. A record with the same
// (StudentID, SessionCode) pair is rejected with ErrDuplicate; records
// without a session code are exempt, matching the pre-code data the ledger
// may still hold.
func (l *Ledger) Append(ctx context.Context, rec Record) error {
	records, err := l.load(ctx)
	if err != nil {
		return err
	}
	if rec.SessionCode != "" {
		for _, existing := range records {
			if existing.StudentID == rec.StudentID && existing.SessionCode == rec.SessionCode {
				return ErrDuplicate
			}
		}
	}
	return l.save(ctx, append(records, rec))
}

// All returns every record in insertion order.
func (l *Ledger) All(ctx context.Context) ([]Record, error) {
	return l.load(ctx)
}

// FilterByDate returns records whose date text equals date.
func (l *Ledger) FilterByDate(ctx context.Context, date string) ([]Record, error) {
	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range records {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

// FilterBySession returns records matching both date and session code. This
// backs the lecturer's live view.
func (l *Ledger) FilterBySession(ctx context.Context, date, sessionCode string) ([]Record, error) {
	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range records {
		if r.Date == date && r.SessionCode == sessionCode {
			out = append(out, r)
		}
	}
	return out, nil
}

// Find returns the first record matching studentID and sessionCode.
func (l *Ledger) Find(ctx context.Context, studentID, sessionCode string) (Record, bool, error) {
	records, err := l.load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range records {
		if r.StudentID == studentID && r.SessionCode == sessionCode {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

// UniqueDates returns the distinct date texts in the ledger, descending
// lexicographically on the stored format.
func (l *Ledger) UniqueDates(ctx context.Context) ([]string, error) {
	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(records))
	var dates []string
	for _, r := range records {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// Clear irreversibly replaces the ledger with an empty array.
func (l *Ledger) Clear(ctx context.Context) error {
	return l.save(ctx, []Record{})
}

// load reads the stored array. A missing key or malformed value reads as
// empty; parse failures are reported through the diagnostic callback.
func (l *Ledger) load(ctx context.Context) ([]Record, error) {
	raw, ok, err := l.kv.Get(ctx, store.KeyRecords)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		if l.diag != nil {
			l.diag(store.KeyRecords, err)
		}
		return nil, nil
	}
	return records, nil
}

func (l *Ledger) save(ctx context.Context, records []Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return l.kv.Set(ctx, store.KeyRecords, raw)
}
