package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	return initCollection(ctx, r.db, domain.Users)
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	if user.DateCreate.IsZero() {
		user.DateCreate = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (login, password, name, surname, accessLevel, email, dateCreate, icon)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Login,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.AccessLevel,
		user.Email,
		user.DateCreate,
		user.Icon,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %q: %w", user.Login, repository.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, login, password, name, surname, accessLevel, email, dateCreate, icon
FROM users
WHERE login = ?`,
		login,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, login, password, name, surname, accessLevel, email, dateCreate, icon
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) UpdateIcon(ctx context.Context, id int64, icon string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET icon = ? WHERE id = ?`, icon, id)
	if err != nil {
		return fmt.Errorf("update user icon: %w", err)
	}
	return expectAffected(res, domain.Users, id)
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user        domain.User
		name        sql.NullString
		surname     sql.NullString
		accessLevel sql.NullInt64
		dateCreate  sql.NullTime
		icon        sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Login,
		&user.PasswordHash,
		&name,
		&surname,
		&accessLevel,
		&user.Email,
		&dateCreate,
		&icon,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.Name = name.String
	user.Surname = surname.String
	user.AccessLevel = int(accessLevel.Int64)
	user.DateCreate = dateCreate.Time
	user.Icon = icon.String
	return &user, nil
}
