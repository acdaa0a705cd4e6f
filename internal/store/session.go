package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"beacon.app/feedback/core/db"
	"beacon.app/feedback/internal/model"
)

type sessionStore struct {
	conn db.DBTX
}

func newSessionStore(conn db.DBTX) SessionStore {
	return &sessionStore{conn: conn}
}

func (s *sessionStore) GetValid(ctx context.Context, id int64) (*model.Session, error) {
	var session model.Session
	err := s.conn.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > now()`, id,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *sessionStore) Create(ctx context.Context, session *model.Session) error {
	return s.conn.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		session.ID, session.UserID, session.ExpiresAt,
	).Scan(&session.CreatedAt)
}

func (s *sessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.conn.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
