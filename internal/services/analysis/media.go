package analysis

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/timecode"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/youtubeurl"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

const frameJPEGQuality = 85

// ExtractFrame возвращает JPEG кадра видео. Если задана ширина меньше исходной,
// кадр уменьшается с сохранением пропорций.
func (s *Service) ExtractFrame(ctx context.Context, req models.FrameRequest) ([]byte, error) {
	const op = "analysis.ExtractFrame"
	if !youtubeurl.IsValid(req.YouTubeURL) || youtubeurl.ExtractVideoID(req.YouTubeURL) == "" {
		return nil, fmt.Errorf("%s: %w: not a YouTube video URL", op, apperr.ErrInvalidInput)
	}
	if !timecode.Valid(req.Time) {
		return nil, fmt.Errorf("%s: %w: time must be SS, MM:SS or HH:MM:SS", op, apperr.ErrInvalidInput)
	}

	data, err := callAnalyzer(ctx, "extract_frame", func(ctx context.Context) ([]byte, error) {
		return s.analyzer.ExtractFrame(ctx, req.YouTubeURL, req.Time)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if req.Width <= 0 {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: decode frame: %v", op, apperr.ErrInternal, err)
	}
	if img.Bounds().Dx() > req.Width {
		img = imaging.Resize(img, req.Width, 0, imaging.Lanczos)
	}
	return encodeJPEG(op, img)
}

func encodeJPEG(op string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(frameJPEGQuality)); err != nil {
		return nil, fmt.Errorf("%s: %w: encode frame: %v", op, apperr.ErrInternal, err)
	}
	return buf.Bytes(), nil
}

// Summarize пересказывает видео целиком или фрагмент между start_time и end_time.
func (s *Service) Summarize(ctx context.Context, req models.SummaryRequest) (*models.SummaryResponse, error) {
	const op = "analysis.Summarize"
	if !youtubeurl.IsValid(req.YouTubeURL) || youtubeurl.ExtractVideoID(req.YouTubeURL) == "" {
		return nil, fmt.Errorf("%s: %w: not a YouTube video URL", op, apperr.ErrInvalidInput)
	}

	start, end := -1, -1
	if req.StartTime != "" {
		sec, err := timecode.Parse(req.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: start_time: %v", op, apperr.ErrInvalidInput, err)
		}
		start = sec
	}
	if req.EndTime != "" {
		sec, err := timecode.Parse(req.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: end_time: %v", op, apperr.ErrInvalidInput, err)
		}
		end = sec
	}
	if start >= 0 && end >= 0 && start >= end {
		return nil, fmt.Errorf("%s: %w: start_time must be before end_time", op, apperr.ErrInvalidInput)
	}

	resp, err := callAnalyzer(ctx, "summarize", func(ctx context.Context) (*models.SummaryResponse, error) {
		return s.analyzer.Summarize(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

// callAnalyzer вызывает анализатор, пишет метрику и классифицирует ошибку.
func callAnalyzer[T any](ctx context.Context, call string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	res, err := fn(ctx)
	metrics.ObserveAnalyzer(call, start, err)
	if err != nil {
		var zero T
		return zero, classify(err)
	}
	return res, nil
}
