package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/e2dconnect/e2d/internal/model"
)

// ErrInUse is returned when a row cannot be deleted because other rows reference it.
var ErrInUse = errors.New("record is referenced by other records")

// Filter narrows list and sum queries. Zero fields are ignored; each store
// only applies the fields its table has.
type Filter struct {
	MemberID   int64
	ExerciseID int64
	Status     string
	Team       string
	Context    string
	From       *model.Date
	To         *model.Date
	Limit      int
}

type clauses struct {
	conds []string
	args  []any
}

func (c *clauses) add(cond string, args ...any) {
	c.conds = append(c.conds, cond)
	c.args = append(c.args, args...)
}

// dateRange restricts col to the filter's inclusive From/To bounds.
func (c *clauses) dateRange(col string, f Filter) {
	if f.From != nil {
		c.add(col+" >= ?", *f.From)
	}
	if f.To != nil {
		c.add(col+" <= ?", *f.To)
	}
}

func (c *clauses) where() string {
	if len(c.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.conds, " AND ")
}

// query assembles base + WHERE + ORDER BY + optional LIMIT.
func (c *clauses) query(base, order string, limit int) (string, []any) {
	q := base + c.where()
	if order != "" {
		q += " ORDER BY " + order
	}
	args := c.args
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return q, args
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullDate scans an optional DATE column.
type nullDate struct {
	Date  model.Date
	Valid bool
}

func (n *nullDate) Scan(src any) error {
	if src == nil {
		n.Date, n.Valid = model.Date{}, false
		return nil
	}
	n.Valid = true
	return n.Date.Scan(src)
}

func (n nullDate) ptr() *model.Date {
	if !n.Valid {
		return nil
	}
	d := n.Date
	return &d
}

func dateArg(d *model.Date) any {
	if d == nil {
		return nil
	}
	return *d
}
