package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

// CreateUserWithChit inserts a user and the user's first chit in a single transaction.
func (r *Repository) CreateUserWithChit(ctx context.Context, user domain.User, chit domain.Chit) (*domain.User, *domain.Chit, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var created domain.User
	err = tx.QueryRow(ctx, `
		INSERT INTO users (user_id, name, mobile, total_chits)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, mobile, total_chits, created_at
	`, user.UserID, user.Name, user.Mobile, user.TotalChits).Scan(
		&created.ID,
		&created.UserID,
		&created.Name,
		&created.Mobile,
		&created.TotalChits,
		&created.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_mobile_key") {
			return nil, nil, ErrDuplicateMobile
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	createdChit, err := scanChit(tx.QueryRow(ctx, `
		INSERT INTO chits (chit_id, user_id, total_chits, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+chitColumns,
		chit.ChitID, created.UserID, chit.TotalChits, chit.IsActive,
	))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return &created, createdChit, nil
}

// MobileExists reports whether a user with the mobile number is already registered.
func (r *Repository) MobileExists(ctx context.Context, mobile int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE mobile = $1)`, mobile).Scan(&exists)
	return exists, err
}

// FindUserByUserID looks up a user by business identifier.
func (r *Repository) FindUserByUserID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, name, mobile, total_chits, created_at
		FROM users
		WHERE user_id = $1
	`, userID).Scan(&user.ID, &user.UserID, &user.Name, &user.Mobile, &user.TotalChits, &user.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers returns every user, newest first.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	return r.queryUserSummaries(ctx, `
		SELECT user_id, name, mobile, total_chits
		FROM users
		ORDER BY created_at DESC, id DESC
	`)
}

// SearchUsersByMobile returns users whose mobile number matches exactly.
func (r *Repository) SearchUsersByMobile(ctx context.Context, mobile int64) ([]domain.UserSummary, error) {
	return r.queryUserSummaries(ctx, `
		SELECT user_id, name, mobile, total_chits
		FROM users
		WHERE mobile = $1
		ORDER BY created_at DESC, id DESC
	`, mobile)
}

// SearchUsersByName returns users whose name contains the fragment, case-insensitively.
func (r *Repository) SearchUsersByName(ctx context.Context, fragment string) ([]domain.UserSummary, error) {
	return r.queryUserSummaries(ctx, `
		SELECT user_id, name, mobile, total_chits
		FROM users
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC, id DESC
	`, fragment)
}

func (r *Repository) queryUserSummaries(ctx context.Context, query string, args ...interface{}) ([]domain.UserSummary, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.UserSummary{}
	for rows.Next() {
		var user domain.UserSummary
		if err := rows.Scan(&user.UserID, &user.Name, &user.Mobile, &user.TotalChits); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
