package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

const userColumns = `id, email, name, plan, analysis_count, last_analysis_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var lastAnalysis sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Plan, &u.AnalysisCount, &lastAnalysis, &u.CreatedAt); err != nil {
		return nil, err
	}
	if lastAnalysis.Valid {
		u.LastAnalysisAt = &lastAnalysis.Time
	}
	return u, nil
}

// UpsertUser создает пользователя при первом входе или обновляет email и имя.
// План и счетчик при обновлении не меняются.
func (s *Storage) UpsertUser(ctx context.Context, id, email, name string) (*models.User, error) {
	const op = "storage.UpsertUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO users (id, email, name)
			  VALUES ($1, $2, $3)
			  ON CONFLICT (id) DO UPDATE
			  SET email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			      name  = COALESCE(NULLIF(EXCLUDED.name, ''), users.name)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id, email, name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUser возвращает пользователя по id.
func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return u, nil
}

// ReserveAnalysisSlot атомарно увеличивает счетчик анализов, если лимит тарифа позволяет.
// Проверка и инкремент выполняются одним условным UPDATE.
func (s *Storage) ReserveAnalysisSlot(ctx context.Context, userID string, freeLimit int) (*models.User, error) {
	const op = "storage.ReserveAnalysisSlot"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE users
			  SET analysis_count = analysis_count + 1,
			      last_analysis_at = now()
			  WHERE id = $1
			    AND (plan = 'PRO' OR analysis_count < $2)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userID, freeLimit))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return nil, fmt.Errorf("%s: %w", op, apperr.ErrQuotaExceeded)
}

// ReleaseAnalysisSlot возвращает зарезервированный слот. Счетчик не уходит ниже нуля.
func (s *Storage) ReleaseAnalysisSlot(ctx context.Context, userID string) error {
	const op = "storage.ReleaseAnalysisSlot"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	query := `UPDATE users
			  SET analysis_count = GREATEST(analysis_count - 1, 0)
			  WHERE id = $1`
	res, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return nil
}
