package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"beacon.app/feedback/core/db"
	"beacon.app/feedback/internal/model"
)

const appColumns = `id, slug, name, api_token, force_auth, gitlab_project, created_at, updated_at`

type appStore struct {
	conn db.DBTX
}

func newAppStore(conn db.DBTX) AppStore {
	return &appStore{conn: conn}
}

func (s *appStore) GetByID(ctx context.Context, id int64) (*model.App, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id)
	return scanApp(row)
}

func (s *appStore) GetByToken(ctx context.Context, token string) (*model.App, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+appColumns+` FROM apps WHERE api_token = $1`, token)
	return scanApp(row)
}

func (s *appStore) Create(ctx context.Context, app *model.App) error {
	row := s.conn.QueryRow(ctx, `
		INSERT INTO apps (id, slug, name, api_token, force_auth, gitlab_project)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+appColumns,
		app.ID, app.Slug, app.Name, app.APIToken, app.ForceAuth, app.GitLabProject)
	created, err := scanApp(row)
	if err != nil {
		return err
	}
	*app = *created
	return nil
}

func scanApp(row pgx.Row) (*model.App, error) {
	var app model.App
	err := row.Scan(
		&app.ID,
		&app.Slug,
		&app.Name,
		&app.APIToken,
		&app.ForceAuth,
		&app.GitLabProject,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}
