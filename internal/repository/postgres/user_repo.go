package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

type UserRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, now: time.Now}
}

const userColumns = `id, full_name, email, password_hash, profile_pic, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts u and fills its id and timestamps. A taken email is a
// validation error.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	u.Email = NormalizeEmail(u.Email)
	now := r.now().UTC().Truncate(time.Microsecond)

	existing, err := r.GetByEmail(ctx, u.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if existing != nil {
		return domain.Invalid("Email already exists!")
	}

	query := `
	INSERT INTO users (full_name, email, password_hash, profile_pic, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	RETURNING id;
	`
	err = r.DB.QueryRowContext(ctx, query, u.FullName, u.Email, u.PasswordHash, u.ProfilePic, now).Scan(&u.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.Invalid("Email already exists!")
		}
		return errors.Wrap(err, "failed to create user")
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err == sql.ErrNoRows {
		return nil, errors.WithMessage(domain.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user by email")
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1;`
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.WithMessage(domain.ErrNotFound, "user not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user by id")
	}
	return u, nil
}

// ListExcept returns every user but the caller, for the contacts sidebar.
func (r *UserRepo) ListExcept(ctx context.Context, id int64) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id <> $1 ORDER BY full_name ASC, id ASC;`
	rows, err := r.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan user row")
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate user rows")
	}
	return users, nil
}

func (r *UserRepo) UpdateProfilePic(ctx context.Context, id int64, url string) (*domain.User, error) {
	query := `UPDATE users SET profile_pic = $1, updated_at = $2 WHERE id = $3;`
	res, err := r.DB.ExecContext(ctx, query, url, r.now().UTC().Truncate(time.Microsecond), id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update profile picture")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errors.WithMessage(domain.ErrNotFound, "user not found")
	}
	return r.GetByID(ctx, id)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
