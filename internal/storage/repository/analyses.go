package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

const analysisColumns = `id, user_id, video_url, video_id, status, error_message,
	comments, statistics, visualizations, ai_analysis, video, created_at, updated_at`

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	a := &models.Analysis{}
	var comments, statistics, visualizations, aiAnalysis, video []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.VideoURL, &a.VideoID, &a.Sentiment.Status, &a.Sentiment.Message,
		&comments, &statistics, &visualizations, &aiAnalysis, &video, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	targets := []struct {
		raw []byte
		dst any
	}{
		{comments, &a.Comments},
		{statistics, &a.Statistics},
		{visualizations, &a.Visualizations},
		{aiAnalysis, &a.AIAnalysis},
	}
	for _, t := range targets {
		if len(t.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(t.raw, t.dst); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	if len(video) > 0 {
		a.Video = &models.VideoDetails{}
		if err := json.Unmarshal(video, a.Video); err != nil {
			return nil, fmt.Errorf("decode video: %w", err)
		}
	}
	if a.Comments == nil {
		a.Comments = []models.Comment{}
	}
	return a, nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateAnalysis сохраняет новый анализ в статусе processing.
func (s *Storage) CreateAnalysis(ctx context.Context, userID, id, videoURL, videoID string) (*models.Analysis, error) {
	const op = "storage.CreateAnalysis"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO analyses (id, user_id, video_url, video_id, status)
			  VALUES ($1, $2, $3, $4, 'processing')
			  RETURNING ` + analysisColumns
	a, err := scanAnalysis(s.DB.QueryRowContext(ctx, query, id, userID, videoURL, videoID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// GetAnalysis возвращает анализ пользователя. Чужой или несуществующий id дает ErrNotFound.
func (s *Storage) GetAnalysis(ctx context.Context, userID, id string) (*models.Analysis, error) {
	const op = "storage.GetAnalysis"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 AND user_id = $2`
	a, err := scanAnalysis(s.DB.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return a, nil
}

// CompleteAnalysis записывает результат анализа. Запись выполняется только из статуса processing,
// для терминальной записи возвращается ErrConflict.
func (s *Storage) CompleteAnalysis(ctx context.Context, id string, result models.AnalyzerResult) (*models.Analysis, error) {
	const op = "storage.CompleteAnalysis"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	comments := result.Comments
	if comments == nil {
		comments = []models.Comment{}
	}
	args := []any{id}
	for _, v := range []any{comments, result.Statistics, result.Visualizations, result.AIAnalysis} {
		raw, err := marshalJSON(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		args = append(args, raw)
	}

	query := `UPDATE analyses
			  SET status = 'completed',
			      error_message = '',
			      comments = $2::jsonb,
			      statistics = $3::jsonb,
			      visualizations = $4::jsonb,
			      ai_analysis = $5::jsonb,
			      updated_at = now()
			  WHERE id = $1 AND status = 'processing'
			  RETURNING ` + analysisColumns
	a, err := scanAnalysis(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// FailAnalysis переводит анализ в статус error с сообщением, только из статуса processing.
func (s *Storage) FailAnalysis(ctx context.Context, id, message string) (*models.Analysis, error) {
	const op = "storage.FailAnalysis"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE analyses
			  SET status = 'error', error_message = $2, updated_at = now()
			  WHERE id = $1 AND status = 'processing'
			  RETURNING ` + analysisColumns
	a, err := scanAnalysis(s.DB.QueryRowContext(ctx, query, id, message))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// SetAnalysisVideo сохраняет метаданные видео.
func (s *Storage) SetAnalysisVideo(ctx context.Context, id string, video *models.VideoDetails) error {
	const op = "storage.SetAnalysisVideo"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	raw, err := marshalJSON(video)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.DB.ExecContext(ctx, `UPDATE analyses SET video = $2::jsonb WHERE id = $1`, id, raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListAnalyses возвращает страницу истории пользователя, новые первыми.
func (s *Storage) ListAnalyses(ctx context.Context, userID string, limit, offset int) ([]models.AnalysisSummary, error) {
	const op = "storage.ListAnalyses"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, video_url, video_id, status, error_message, statistics, video, created_at
			  FROM analyses
			  WHERE user_id = $1
			  ORDER BY created_at DESC, id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	items := make([]models.AnalysisSummary, 0, limit)
	for rows.Next() {
		var it models.AnalysisSummary
		var statistics, video []byte
		if err := rows.Scan(&it.ID, &it.VideoURL, &it.VideoID, &it.Sentiment.Status, &it.Sentiment.Message,
			&statistics, &video, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(statistics) > 0 {
			if err := json.Unmarshal(statistics, &it.Statistics); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		if len(video) > 0 {
			it.Video = &models.VideoDetails{}
			if err := json.Unmarshal(video, it.Video); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// CountAnalyses возвращает число анализов пользователя.
func (s *Storage) CountAnalyses(ctx context.Context, userID string) (int, error) {
	const op = "storage.CountAnalyses"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, nil
}

// FindCompletedByVideo возвращает последний завершенный анализ видео пользователя.
func (s *Storage) FindCompletedByVideo(ctx context.Context, userID, videoID string) (*models.Analysis, error) {
	const op = "storage.FindCompletedByVideo"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + analysisColumns + `
			  FROM analyses
			  WHERE user_id = $1 AND video_id = $2 AND status = 'completed'
			  ORDER BY created_at DESC
			  LIMIT 1`
	a, err := scanAnalysis(s.DB.QueryRowContext(ctx, query, userID, videoID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return a, nil
}

// StaleAnalysis анализ, завис в статусе processing.
type StaleAnalysis struct {
	ID       string
	UserID   string
	VideoURL string
	Email    string
}

// FailStaleAnalyses переводит в error все анализы, созданные раньше before и не завершенные.
func (s *Storage) FailStaleAnalyses(ctx context.Context, before time.Time, message string) ([]StaleAnalysis, error) {
	const op = "storage.FailStaleAnalyses"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `WITH failed AS (
				  UPDATE analyses
				  SET status = 'error', error_message = $2, updated_at = now()
				  WHERE status = 'processing' AND created_at < $1
				  RETURNING id, user_id, video_url
			  )
			  SELECT failed.id, failed.user_id, failed.video_url, users.email
			  FROM failed JOIN users ON users.id = failed.user_id`
	rows, err := s.DB.QueryContext(ctx, query, before, message)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []StaleAnalysis
	for rows.Next() {
		var a StaleAnalysis
		if err := rows.Scan(&a.ID, &a.UserID, &a.VideoURL, &a.Email); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
