// Package analyzer клиент внешнего сервиса анализа комментариев.
//
// Базовый адрес и таймауты каждого вызова задаются конфигом.
// Превышение таймаута возвращается как apperr.ErrTimeout, ответы не 2xx как *Error
// с сообщением из поля error или detail тела ответа.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/comment-analytics/internal/config"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

const maxFrameBytes = 20 << 20

// Error ответ анализатора с кодом не 2xx.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("analyzer responded %d: %s", e.StatusCode, e.Message)
}

// Client HTTP-клиент анализатора.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeouts   config.Analyzer
}

// New создаёт клиент анализатора.
func New(cfg config.Analyzer, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		timeouts:   cfg,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do выполняет запрос с таймаутом и возвращает тело успешного ответа.
func (c *Client) do(ctx context.Context, op, method, path string, body any, timeout time.Duration, limit int64) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w after %s", op, apperr.ErrTimeout, timeout)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w after %s", op, apperr.ErrTimeout, timeout)
		}
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w", op, &Error{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)})
	}
	return data, nil
}

// errorMessage достает текст ошибки из тела вида {"error": ...} или {"detail": ...}.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, raw := range []json.RawMessage{payload.Error, payload.Detail} {
			if len(raw) == 0 {
				continue
			}
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
			return string(raw)
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return fallback
}

func decode[T any](op string, data []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return &out, nil
}

// Health проверяет, что анализатор готов принимать запросы.
func (c *Client) Health(ctx context.Context) error {
	const op = "analyzer.Health"
	_, err := c.do(ctx, op, http.MethodGet, "/health", nil, c.timeouts.HealthTimeout, 1<<16)
	return err
}

// Analyze запускает анализ комментариев видео и ждет результат.
func (c *Client) Analyze(ctx context.Context, videoURL, analysisID string) (*models.AnalyzerResult, error) {
	const op = "analyzer.Analyze"
	body := map[string]string{"video_url": videoURL, "analysis_id": analysisID}
	data, err := c.do(ctx, op, http.MethodPost, "/api/analyze", body, c.timeouts.AnalyzeTimeout, 64<<20)
	if err != nil {
		return nil, err
	}
	return decode[models.AnalyzerResult](op, data)
}

// Chat задает вопрос по комментариям анализа.
func (c *Client) Chat(ctx context.Context, question, analysisID string) (*models.ChatResponse, error) {
	const op = "analyzer.Chat"
	body := map[string]string{"question": question, "analysis_id": analysisID}
	data, err := c.do(ctx, op, http.MethodPost, "/api/chat", body, c.timeouts.ChatTimeout, 8<<20)
	if err != nil {
		return nil, err
	}
	return decode[models.ChatResponse](op, data)
}

// ExtractFrame возвращает JPEG кадра видео в момент времени.
func (c *Client) ExtractFrame(ctx context.Context, youtubeURL, at string) ([]byte, error) {
	const op = "analyzer.ExtractFrame"
	body := map[string]string{"youtube_url": youtubeURL, "time": at}
	data, err := c.do(ctx, op, http.MethodPost, "/api/extract-frame", body, c.timeouts.FrameTimeout, maxFrameBytes)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty image", op)
	}
	return data, nil
}

// Summarize пересказывает фрагмент видео.
func (c *Client) Summarize(ctx context.Context, req models.SummaryRequest) (*models.SummaryResponse, error) {
	const op = "analyzer.Summarize"
	data, err := c.do(ctx, op, http.MethodPost, "/api/summarize-video", req, c.timeouts.SummarizeTimeout, 16<<20)
	if err != nil {
		return nil, err
	}
	return decode[models.SummaryResponse](op, data)
}

// Complete отправляет произвольный промпт модели и возвращает сырой JSON ответа.
func (c *Client) Complete(ctx context.Context, prompt string) (json.RawMessage, error) {
	const op = "analyzer.Complete"
	body := map[string]string{"prompt": prompt}
	data, err := c.do(ctx, op, http.MethodPost, "/api/gemini", body, c.timeouts.CompletionTimeout, 8<<20)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: response is not json", op)
	}
	return json.RawMessage(data), nil
}
