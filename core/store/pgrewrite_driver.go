package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
)

// The stores write sqlite-flavored SQL (? placeholders, INSERT OR IGNORE).
// This driver shim translates it to postgres on the fly so both backends run
// the same store code.
const postgresDriverName = "pgx-compat"

func init() {
	sql.Register(postgresDriverName, pgCompat{inner: stdlib.GetDefaultDriver()})
}

type pgCompat struct {
	inner driver.Driver
}

func (d pgCompat) Open(dsn string) (driver.Conn, error) {
	conn, err := d.inner.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &pgCompatConn{Conn: conn}, nil
}

type pgCompatConn struct {
	driver.Conn
}

func (c *pgCompatConn) Prepare(query string) (driver.Stmt, error) {
	return c.Conn.Prepare(translateQuery(query))
}

func (c *pgCompatConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	p, ok := c.Conn.(driver.ConnPrepareContext)
	if !ok {
		return c.Prepare(query)
	}
	return p.PrepareContext(ctx, translateQuery(query))
}

func (c *pgCompatConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	ex, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	translated := translateQuery(query)
	res, err := ex.ExecContext(ctx, translated, args)
	if err != nil {
		return nil, err
	}
	// database/sql callers expect LastInsertId after inserts; postgres has
	// no implicit one, so pull lastval() from the same connection.
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(translated)), "INSERT ") {
		return pgCompatResult{inner: res, insertID: c.lastval(ctx)}, nil
	}
	return pgCompatResult{inner: res}, nil
}

func (c *pgCompatConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	qx, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	return qx.QueryContext(ctx, translateQuery(query), args)
}

func (c *pgCompatConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	if opts.ReadOnly {
		return nil, errors.New("read-only transactions unsupported by this driver")
	}
	return c.Conn.Begin()
}

func (c *pgCompatConn) lastval(ctx context.Context) int64 {
	rows, err := c.QueryContext(ctx, "SELECT lastval()", nil)
	if err != nil || rows == nil {
		return 0
	}
	defer rows.Close()
	dest := make([]driver.Value, 1)
	if rows.Next(dest) != nil {
		return 0
	}
	switch v := dest[0].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

type pgCompatResult struct {
	inner    driver.Result
	insertID int64
}

func (r pgCompatResult) LastInsertId() (int64, error) {
	return r.insertID, nil
}

func (r pgCompatResult) RowsAffected() (int64, error) {
	if r.inner == nil {
		return 0, nil
	}
	return r.inner.RowsAffected()
}

var insertOrIgnoreRe = regexp.MustCompile(`(?is)^\s*insert\s+or\s+ignore\s+into\s+`)

func translateQuery(query string) string {
	out := query
	if insertOrIgnoreRe.MatchString(out) {
		out = insertOrIgnoreRe.ReplaceAllString(out, "INSERT INTO ")
		out = strings.TrimSuffix(strings.TrimSpace(out), ";") + " ON CONFLICT DO NOTHING"
	}
	return ordinalPlaceholders(out)
}

// ordinalPlaceholders rewrites ? to $1..$n, leaving question marks inside
// single-quoted literals alone.
func ordinalPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			if quoted && i+1 < len(query) && query[i+1] == '\'' {
				b.WriteString("''")
				i++
				continue
			}
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
