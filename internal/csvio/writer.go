package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/timetable-engine/internal/timetable"
)

// WriteSessions encodes sessions as CSV in the layout ReadSessions accepts.
func WriteSessions(out io.Writer, sessions []timetable.Session, opts ...Option) error {
	d := newDialect(opts)
	records := make([]sessionRecord, 0, len(sessions))
	for _, s := range sessions {
		records = append(records, newSessionRecord(s))
	}
	w := csv.NewWriter(out)
	w.Comma = d.comma
	if err := gocsv.MarshalCSV(&records, gocsv.NewSafeCSVWriter(w)); err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	return nil
}

// WriteSessionsFile writes sessions to path, replacing any existing file.
func WriteSessionsFile(path string, sessions []timetable.Session, opts ...Option) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return WriteSessions(f, sessions, opts...)
}
