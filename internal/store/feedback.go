package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"beacon.app/feedback/core/db"
	"beacon.app/feedback/internal/model"
)

const feedbackColumns = `id, app_id, user_id, kind, message, screen, screenshot, device_info, package_info,
	status, external_issue, created_at, updated_at`

type feedbackStore struct {
	conn db.DBTX
}

func newFeedbackStore(conn db.DBTX) FeedbackStore {
	return &feedbackStore{conn: conn}
}

func (s *feedbackStore) Create(ctx context.Context, report *model.FeedbackReport) error {
	deviceInfo, err := json.Marshal(report.DeviceInfo)
	if err != nil {
		return fmt.Errorf("marshaling device info: %w", err)
	}
	packageInfo, err := json.Marshal(report.PackageInfo)
	if err != nil {
		return fmt.Errorf("marshaling package info: %w", err)
	}
	if report.Status == "" {
		report.Status = model.ReportStatusReceived
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO feedback_reports (id, app_id, user_id, kind, message, screen, screenshot, device_info, package_info, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+feedbackColumns,
		report.ID, report.AppID, report.UserID, string(report.Kind), report.Message, report.Screen,
		report.Screenshot, deviceInfo, packageInfo, string(report.Status))
	created, err := scanFeedback(row)
	if err != nil {
		return err
	}
	*report = *created
	return nil
}

func (s *feedbackStore) GetByID(ctx context.Context, id int64) (*model.FeedbackReport, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedback_reports WHERE id = $1`, id)
	return scanFeedback(row)
}

func (s *feedbackStore) UpdateStatus(ctx context.Context, id int64, status model.ReportStatus, externalIssue *string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE feedback_reports
		SET status = $2, external_issue = COALESCE($3, external_issue), updated_at = now()
		WHERE id = $1`,
		id, string(status), externalIssue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *feedbackStore) RecordIssue(ctx context.Context, id int64, url string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE feedback_reports
		SET external_issue = $2, updated_at = now()
		WHERE id = $1 AND external_issue IS NULL`,
		id, url)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanFeedback(row pgx.Row) (*model.FeedbackReport, error) {
	var (
		report      model.FeedbackReport
		kind        string
		status      string
		deviceInfo  []byte
		packageInfo []byte
	)
	err := row.Scan(
		&report.ID,
		&report.AppID,
		&report.UserID,
		&kind,
		&report.Message,
		&report.Screen,
		&report.Screenshot,
		&deviceInfo,
		&packageInfo,
		&status,
		&report.ExternalIssue,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	report.Kind = model.Kind(kind)
	report.Status = model.ReportStatus(status)

	if err := json.Unmarshal(deviceInfo, &report.DeviceInfo); err != nil {
		return nil, fmt.Errorf("unmarshaling device info: %w", err)
	}
	if err := json.Unmarshal(packageInfo, &report.PackageInfo); err != nil {
		return nil, fmt.Errorf("unmarshaling package info: %w", err)
	}
	return &report, nil
}
