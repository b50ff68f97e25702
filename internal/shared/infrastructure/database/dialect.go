package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is fixed width so that TEXT columns sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Rebind rewrites ? placeholders into the form the driver expects.
// Queries are written once with ? and rebound for PostgreSQL.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// TimeArg converts t into a query argument for the driver.
// SQLite stores timestamps as sortable UTC text.
func TimeArg(driver Driver, t time.Time) any {
	if driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// NullTimeArg is TimeArg for optional timestamps.
func NullTimeArg(driver Driver, t *time.Time) any {
	if t == nil {
		return nil
	}
	return TimeArg(driver, *t)
}

// Time scans a timestamp column written by TimeArg from either driver.
type Time struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("database: cannot scan %T into Time", src)
	}
}

func (t *Time) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("database: invalid timestamp %q", s)
}

// Ptr returns the time or nil when the column was NULL.
func (t Time) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
