// Package snapshot writes the map's JSON document so readers only ever see a
// complete file.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/inspection-map/internal/model"
)

// DefaultLayout renders timestamps like "March 05, 2024 at 02:07 PM".
const DefaultLayout = "January 02, 2006 at 03:04 PM"

// WriteError reports a failed snapshot write. The previous file at Path, if
// any, is left as it was.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("snapshot: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer renders and atomically replaces the snapshot file.
type Writer struct {
	layout   string
	location *time.Location
}

// NewWriter creates a Writer formatting timestamps with layout in the named
// IANA timezone. An unknown timezone falls back to local time.
func NewWriter(layout, timezone string) *Writer {
	if layout == "" {
		layout = DefaultLayout
	}
	loc := time.Local
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			zap.L().Warn("snapshot: unknown timezone, using local time",
				zap.String("timezone", timezone), zap.Error(err))
		} else {
			loc = l
		}
	}
	return &Writer{layout: layout, location: loc}
}

// FormatTimestamp renders t as the snapshot's last_run value.
func (w *Writer) FormatTimestamp(t time.Time) string {
	return t.In(w.location).Format(w.layout)
}

// Render returns the indented JSON document for records.
func (w *Writer) Render(records []model.InspectionRecord, timestamp time.Time) ([]byte, error) {
	if records == nil {
		records = []model.InspectionRecord{}
	}
	doc := model.Snapshot{
		LastRun:        w.FormatTimestamp(timestamp),
		Establishments: records,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write replaces dest with the snapshot of records. The document goes to a
// temp file in dest's directory which is synced and renamed over dest.
func (w *Writer) Write(records []model.InspectionRecord, timestamp time.Time, dest string) error {
	data, err := w.Render(records, timestamp)
	if err != nil {
		return &WriteError{Path: dest, Op: "encode", Err: err}
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: dest, Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return &WriteError{Path: dest, Op: "create temp", Err: err}
	}
	tmpName := tmp.Name()

	fail := func(op string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: dest, Op: op, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: dest, Op: "close", Err: err}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: dest, Op: "rename", Err: err}
	}

	zap.L().Debug("snapshot: written",
		zap.String("path", dest),
		zap.Int("establishments", len(records)),
	)
	return nil
}
