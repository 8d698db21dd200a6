package postgres

import (
	"context"

	"github.com/dukerupert/mercato/internal/domain"
)

// UserRepo reads users.
type UserRepo struct {
	q querier
}

const userColumns = `id::text, name, email, phone_number, shipping_address, is_admin, created_at, updated_at`

func (r *UserRepo) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row, "postgres.FindUserByID")
}

func (r *UserRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row, "postgres.FindUserByEmail")
}

func scanUser(row interface{ Scan(...any) error }, op string) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.ShippingAddress, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err, op, domain.ErrUserNotFound)
	}
	return &u, nil
}
