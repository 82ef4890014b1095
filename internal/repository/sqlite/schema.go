package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dryengineer/internal/domain"
)

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func sqlType(kind domain.ColumnKind) string {
	switch kind {
	case domain.KindInteger:
		return "INTEGER"
	case domain.KindTime:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

func createTableStatement(c domain.Collection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\t%s INTEGER PRIMARY KEY AUTOINCREMENT", quote(c.Table), quote(c.PrimaryKey))
	for _, col := range c.Columns {
		fmt.Fprintf(&b, ",\n\t%s %s", quote(col.Name), sqlType(col.Kind))
		if col.Required {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString("\n);")
	return b.String()
}

// initCollection creates the table of c, adds columns missing from tables
// created by older releases and builds the unique indexes.
func initCollection(ctx context.Context, db *sql.DB, c domain.Collection) error {
	if _, err := db.ExecContext(ctx, createTableStatement(c)); err != nil {
		return fmt.Errorf("create %s table: %w", c.Table, err)
	}
	if err := ensureColumns(ctx, db, c); err != nil {
		return err
	}
	for _, col := range c.Columns {
		if !col.Unique {
			continue
		}
		stmt := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s(%s)`,
			quote("idx_"+c.Table+"_"+col.Name), quote(c.Table), quote(col.Name))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create unique index on %s.%s: %w", c.Table, col.Name, err)
		}
	}
	return nil
}

func ensureColumns(ctx context.Context, db *sql.DB, c domain.Collection) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quote(c.Table)))
	if err != nil {
		return fmt.Errorf("describe %s table: %w", c.Table, err)
	}
	defer rows.Close()

	columns := map[string]struct{}{}
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scan pragma table info: %w", err)
		}
		columns[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pragma table info: %w", err)
	}
	rows.Close()

	for _, col := range c.Columns {
		if _, exists := columns[strings.ToLower(col.Name)]; exists {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, quote(c.Table), quote(col.Name), sqlType(col.Kind))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col.Name, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
