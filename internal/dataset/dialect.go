package dataset

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported engines.
type Dialect struct {
	// Name identifies the dialect ("mysql", "postgres", "sqlite").
	Name string

	// OpenQuote and CloseQuote surround identifiers.
	OpenQuote  string
	CloseQuote string

	// Numbered selects $1, $2, ... placeholders instead of ?.
	Numbered bool

	// Returning is set when INSERT ... RETURNING reports generated keys.
	Returning bool

	// Locking is set when SELECT ... FOR UPDATE is understood.
	Locking bool

	// NoLimit is the LIMIT value rendered when only an OFFSET is set.
	// Empty means OFFSET may stand alone.
	NoLimit string

	// EmptyInsert is appended to "INSERT INTO t" for a row without columns.
	EmptyInsert string
}

var (
	// MySQL is the dialect of github.com/go-sql-driver/mysql.
	MySQL = &Dialect{
		Name:        "mysql",
		OpenQuote:   "`",
		CloseQuote:  "`",
		Locking:     true,
		NoLimit:     "18446744073709551615",
		EmptyInsert: " () VALUES ()",
	}

	// Postgres is the dialect of github.com/jackc/pgx/v5/stdlib.
	Postgres = &Dialect{
		Name:        "postgres",
		OpenQuote:   `"`,
		CloseQuote:  `"`,
		Numbered:    true,
		Returning:   true,
		Locking:     true,
		EmptyInsert: " DEFAULT VALUES",
	}

	// SQLite is the dialect of modernc.org/sqlite.
	SQLite = &Dialect{
		Name:        "sqlite",
		OpenQuote:   `"`,
		CloseQuote:  `"`,
		NoLimit:     "-1",
		EmptyInsert: " DEFAULT VALUES",
	}
)

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d *Dialect) Placeholder(n int) string {
	if d.Numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// QuoteIdentifier quotes each dot-separated part of name. A bare * is left alone.
func (d *Dialect) QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		p = strings.ReplaceAll(p, d.CloseQuote, d.CloseQuote+d.CloseQuote)
		parts[i] = d.OpenQuote + p + d.CloseQuote
	}
	return strings.Join(parts, ".")
}
