// Package backup exports the business tables to a JSON document, restores
// them, and keeps encrypted copies in S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// Version is the document format written by Export.
const Version = 1

// ErrVersion is returned by Import for documents of another format version.
var ErrVersion = errors.New("unsupported backup version")

// ErrIncomplete is returned by Import when a covered table is missing from
// the document. An empty list is accepted.
var ErrIncomplete = errors.New("incomplete backup document")

// Tables lists the tables a document covers, parents before children.
// Sessions, backups and push subscriptions are deliberately absent.
var Tables = []string{
	"roles",
	"role_permissions",
	"users",
	"members",
	"exercises",
	"contribution_types",
	"sanction_types",
	"meetings",
	"meeting_attendances",
	"contributions",
	"savings",
	"loans",
	"loan_payments",
	"sport_matches",
	"match_cards",
	"sanctions",
	"sport_transactions",
	"events",
	"donations",
	"adhesion_requests",
	"settings",
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05.999999999-07:00"
)

// Row is one table row keyed by column name.
type Row map[string]any

type Document struct {
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	Counts    map[string]int   `json:"counts"`
	Tables    map[string][]Row `json:"tables"`
}

// Records returns the total number of rows in the document.
func (d *Document) Records() int64 {
	var n int64
	for _, c := range d.Counts {
		n += int64(c)
	}
	return n
}

// Encode writes the document as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Marshal returns the encoded document.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a document, keeping numbers exact.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	return &doc, nil
}

// Export reads every covered table inside one transaction.
func Export(ctx context.Context, db *sql.DB) (*Document, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	doc := &Document{
		Version:   Version,
		CreatedAt: time.Now().UTC(),
		Counts:    make(map[string]int, len(Tables)),
		Tables:    make(map[string][]Row, len(Tables)),
	}
	for _, table := range Tables {
		rows, err := exportTable(ctx, tx, table)
		if err != nil {
			return nil, err
		}
		doc.Tables[table] = rows
		doc.Counts[table] = len(rows)
	}
	return doc, tx.Commit()
}

func exportTable(ctx context.Context, tx *sql.Tx, table string) ([]Row, error) {
	rows, err := tx.QueryContext(ctx, `SELECT * FROM `+table+` ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("export %s columns: %w", table, err)
	}

	out := []Row{}
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		row := make(Row, len(types))
		for i, ct := range types {
			row[ct.Name()] = exportValue(values[i], ct.DatabaseTypeName())
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func exportValue(v any, declType string) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case time.Time:
		if strings.EqualFold(declType, "DATE") {
			return v.UTC().Format(dateLayout)
		}
		return v.UTC().Format(datetimeLayout)
	default:
		return v
	}
}

// Import replaces the contents of every covered table with the document's
// rows in one transaction. The document must list every covered table.
// Existing sessions are dropped along with users.
func Import(ctx context.Context, db *sql.DB, doc *Document) error {
	if doc.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}
	for table, rows := range doc.Tables {
		if !slices.Contains(Tables, table) {
			return fmt.Errorf("unknown table %q in backup", table)
		}
		if c, ok := doc.Counts[table]; ok && c != len(rows) {
			return fmt.Errorf("table %s: %d rows, document counts %d", table, len(rows), c)
		}
	}
	for _, table := range Tables {
		if _, ok := doc.Tables[table]; !ok {
			return fmt.Errorf("%w: table %s missing", ErrIncomplete, table)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i := len(Tables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+Tables[i]); err != nil {
			return fmt.Errorf("clear %s: %w", Tables[i], err)
		}
	}

	for _, table := range Tables {
		rows := doc.Tables[table]
		if len(rows) == 0 {
			continue
		}
		if err := importTable(ctx, tx, table, rows); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func importTable(ctx context.Context, tx *sql.Tx, table string, rows []Row) error {
	known, err := tableColumns(ctx, tx, table)
	if err != nil {
		return err
	}

	for n, row := range rows {
		cols := make([]string, 0, len(row))
		for col := range row {
			if !known[col] {
				return fmt.Errorf("table %s: unknown column %q", table, col)
			}
			cols = append(cols, col)
		}
		slices.Sort(cols)

		args := make([]any, len(cols))
		for i, col := range cols {
			args[i] = importValue(row[col])
		}
		q := `INSERT INTO ` + table + ` (` + strings.Join(cols, ", ") + `) VALUES (` +
			strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + `)`
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, n, err)
		}
	}
	return nil
}

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func importValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}
