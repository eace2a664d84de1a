package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	"rollcall/internal/ledger"
)

// ErrNoRecords is returned when an export is requested for an empty set. It
// aborts the export only; nothing else fails.
var ErrNoRecords = errors.New("no records to export for this date")

var header = []string{"Student Name", "Student ID", "Time", "Date", "Session Code"}

// CSV renders records as a comma-separated document with a fixed header row.
// A record without a session code renders the literal N/A.
func CSV(records []ledger.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range records {
		code := r.SessionCode
		if code == "" {
			code = "N/A"
		}
		if err := w.Write([]string{r.StudentName, r.StudentID, r.Timestamp, r.Date, code}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename returns the download name for a date's export, with the date's
// separators flattened to hyphens: attendance-1-2-2024.csv.
func Filename(date string) string {
	return "attendance-" + strings.ReplaceAll(date, "/", "-") + ".csv"
}
