package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
)

// RecordStore implements repository.RecordStore. Every identifier in a
// statement comes from the collection definition, never from record keys.
type RecordStore struct {
	db          *sql.DB
	collections []domain.Collection
}

func NewRecordStore(db *sql.DB, collections ...domain.Collection) repository.RecordStore {
	return &RecordStore{db: db, collections: collections}
}

func (r *RecordStore) Init(ctx context.Context) error {
	for _, c := range r.collections {
		if err := initCollection(ctx, r.db, c); err != nil {
			return err
		}
	}
	return nil
}

func selectList(c domain.Collection) string {
	names := make([]string, 0, len(c.Columns)+1)
	names = append(names, quote(c.PrimaryKey))
	for _, col := range c.Columns {
		names = append(names, quote(col.Name))
	}
	return strings.Join(names, ", ")
}

func (r *RecordStore) List(ctx context.Context, c domain.Collection) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s ASC`,
		selectList(c), quote(c.Table), quote(c.PrimaryKey)))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.Table, err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(c, rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *RecordStore) Get(ctx context.Context, c domain.Collection, id int64) (domain.Record, error) {
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		selectList(c), quote(c.Table), quote(c.PrimaryKey)), id)
	rec, err := scanRecord(c, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", c.Name, id, repository.ErrNotFound)
	}
	return rec, err
}

func (r *RecordStore) Insert(ctx context.Context, c domain.Collection, fields domain.Record) (int64, error) {
	cols, args, err := orderedColumns(c, fields)
	if err != nil {
		return 0, err
	}

	var stmt string
	if len(cols) == 0 {
		stmt = fmt.Sprintf(`INSERT INTO %s DEFAULT VALUES`, quote(c.Table))
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		stmt = fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quote(c.Table), strings.Join(cols, ", "), placeholders)
	}

	res, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert %s: %w", c.Name, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert %s: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s last insert id: %w", c.Name, err)
	}
	return id, nil
}

func (r *RecordStore) Update(ctx context.Context, c domain.Collection, id int64, fields domain.Record) error {
	cols, args, err := orderedColumns(c, fields)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("update %s: no fields", c.Name)
	}

	assignments := make([]string, len(cols))
	for i, col := range cols {
		assignments[i] = col + " = ?"
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ?`,
		quote(c.Table), strings.Join(assignments, ", "), quote(c.PrimaryKey)), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update %s %d: %w", c.Name, id, repository.ErrDuplicate)
		}
		return fmt.Errorf("update %s %d: %w", c.Name, id, err)
	}
	return expectAffected(res, c, id)
}

func (r *RecordStore) Delete(ctx context.Context, c domain.Collection, id int64) error {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, quote(c.Table), quote(c.PrimaryKey)), id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", c.Name, id, err)
	}
	return expectAffected(res, c, id)
}

func expectAffected(res sql.Result, c domain.Collection, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", c.Name, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", c.Name, id, repository.ErrNotFound)
	}
	return nil
}

// orderedColumns resolves record keys against the schema in a stable order.
func orderedColumns(c domain.Collection, fields domain.Record) ([]string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for _, k := range keys {
		col, ok := c.Column(k)
		if !ok {
			return nil, nil, fmt.Errorf("%s has no column %q", c.Name, k)
		}
		cols = append(cols, quote(col.Name))
		args = append(args, fields[k])
	}
	return cols, args, nil
}

func scanRecord(c domain.Collection, row interface {
	Scan(dest ...any) error
}) (domain.Record, error) {
	var id int64
	dest := make([]any, 0, len(c.Columns)+1)
	dest = append(dest, &id)
	for _, col := range c.Columns {
		switch col.Kind {
		case domain.KindInteger:
			dest = append(dest, new(sql.NullInt64))
		case domain.KindTime:
			dest = append(dest, new(sql.NullTime))
		default:
			dest = append(dest, new(sql.NullString))
		}
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan %s: %w", c.Name, err)
	}

	rec := domain.Record{c.PrimaryKey: id}
	for i, col := range c.Columns {
		var v any
		switch holder := dest[i+1].(type) {
		case *sql.NullInt64:
			if holder.Valid {
				v = holder.Int64
			}
		case *sql.NullTime:
			if holder.Valid {
				v = holder.Time
			}
		case *sql.NullString:
			if holder.Valid {
				v = holder.String
			}
		}
		rec[col.Name] = v
	}
	return rec, nil
}
