// Package csvdb keeps the portal's tables as CSV files in blob storage.
//
// Every table is one blob holding a header row and one row per record. A missing blob is an
// empty table. Writes read, modify and rewrite the whole blob under the table's mutex.
package csvdb

import (
	"bytes"
	"context"
	"encoding/csv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/mdii/portal/core"
)

const contentType = "text/csv; charset=utf-8"

type (
	// Row is one CSV record by column name.
	Row map[string]string

	DB struct {
		store      core.BlobStore
		tasks      *table
		notes      *table
		toolStatus *table
	}

	table struct {
		key    string
		header []string
		mutex  sync.RWMutex
	}
)

var (
	taskHeader       = []string{"id", "toolId", "toolName", "title", "content", "status", "assignee", "createdBy", "createdAt", "updatedAt"}
	noteHeader       = []string{"id", "toolId", "toolName", "content", "createdBy", "createdAt", "updatedAt"}
	toolStatusHeader = []string{"toolId", "status", "reason", "updatedBy", "updatedAt"}
)

func Open(store core.BlobStore, keys core.BlobKeys) *DB {
	return &DB{
		store:      store,
		tasks:      &table{key: keys.Tasks, header: taskHeader},
		notes:      &table{key: keys.Notes, header: noteHeader},
		toolStatus: &table{key: keys.ToolStatus, header: toolStatusHeader},
	}
}

// Decode parses a CSV blob. Columns are matched by header name; absent columns read as "".
func Decode(data []byte) ([]Row, error) {
	rows := make([]Row, 0)
	if len(bytes.TrimSpace(data)) == 0 {
		return rows, nil
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parsing csv")
	}
	header := records[0]
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Encode writes rows under header.
func Encode(header []string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, errors.Wrap(err, "writing csv header")
	}
	rec := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			rec[i] = row[col]
		}
		if err := w.Write(rec); err != nil {
			return nil, errors.Wrap(err, "writing csv row")
		}
	}
	w.Flush()
	return buf.Bytes(), errors.Wrap(w.Error(), "flushing csv")
}

func (db *DB) read(ctx context.Context, t *table) ([]Row, error) {
	data, err := db.store.Get(ctx, t.key)
	if err != nil {
		if errors.Cause(err) == core.ErrBlobNotFound {
			return make([]Row, 0), nil
		}
		return nil, errors.Wrapf(err, "reading %s", t.key)
	}
	rows, err := Decode(data)
	return rows, errors.Wrapf(err, "decoding %s", t.key)
}

func (db *DB) write(ctx context.Context, t *table, rows []Row) error {
	data, err := Encode(t.header, rows)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", t.key)
	}
	return errors.Wrapf(db.store.Put(ctx, t.key, data, contentType), "writing %s", t.key)
}

func (db *DB) query(ctx context.Context, t *table) ([]Row, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return db.read(ctx, t)
}

// modify runs fn over the current rows and writes back what it returns.
func (db *DB) modify(ctx context.Context, t *table, fn func(rows []Row) ([]Row, error)) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	rows, err := db.read(ctx, t)
	if err != nil {
		return err
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	return db.write(ctx, t, rows)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
