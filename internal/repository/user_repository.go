package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/marketplace-slot-booking/internal/model"
	"github.com/iliyamo/marketplace-slot-booking/internal/utils"
)

// ErrEmailExists reports a registration attempt with an address that
// already has an account.
var ErrEmailExists = errors.New("email already exists")

const userColumns = "id, email, password_hash, role, is_active, created_at, updated_at"

// UserRepo provides access to the users table.
type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create registers a new account and returns its ID. The email is
// normalized to lower case so the unique index treats addresses
// case-insensitively; role is CUSTOMER or VENDOR.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = normalizeEmail(email)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}

	const q = `INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`
	res, err := r.DB.ExecContext(ctx, q, email, hash, role)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail loads the account for a (normalized) email address.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`
	return r.scanUser(r.DB.QueryRowContext(ctx, q, normalizeEmail(email)))
}

// GetByID loads an account by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`
	return r.scanUser(r.DB.QueryRowContext(ctx, q, id))
}

func (r *UserRepo) scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
