package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"beacon.app/feedback/core/db"
	"beacon.app/feedback/internal/model"
)

const userColumns = `id, name, email, workos_id, created_at, updated_at`

type userStore struct {
	conn db.DBTX
}

func newUserStore(conn db.DBTX) UserStore {
	return &userStore{conn: conn}
}

func (s *userStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpsertByWorkOSID inserts the user or refreshes name and email of the user
// with the same WorkOS id. user is overwritten with the stored row, so the ID
// of an existing user wins over the one passed in.
func (s *userStore) UpsertByWorkOSID(ctx context.Context, user *model.User) error {
	row := s.conn.QueryRow(ctx, `
		INSERT INTO users (id, name, email, workos_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workos_id) DO UPDATE
		SET name = EXCLUDED.name, email = EXCLUDED.email, updated_at = now()
		RETURNING `+userColumns,
		user.ID, user.Name, user.Email, user.WorkOSID)
	stored, err := scanUser(row)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.WorkOSID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
