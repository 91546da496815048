// Package youtube получает метаданные видео через YouTube Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

// ErrVideoNotFound видео не найдено или скрыто.
var ErrVideoNotFound = errors.New("video not found")

// Client читает метаданные видео.
type Client struct {
	videos *youtube.VideosService
}

// New создает клиент с ключом API. Дополнительные опции нужны для тестов.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	const op = "youtube.New"
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Client{videos: youtube.NewVideosService(svc)}, nil
}

// VideoDetails возвращает название, канал и счетчики видео.
func (c *Client) VideoDetails(ctx context.Context, videoID string) (*models.VideoDetails, error) {
	const op = "youtube.VideoDetails"

	resp, err := c.videos.List([]string{"snippet", "statistics"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrVideoNotFound)
	}

	item := resp.Items[0]
	details := &models.VideoDetails{}
	if item.Snippet != nil {
		details.Title = item.Snippet.Title
		details.ChannelTitle = item.Snippet.ChannelTitle
		details.PublishedAt = item.Snippet.PublishedAt
		if th := item.Snippet.Thumbnails; th != nil {
			switch {
			case th.High != nil:
				details.ThumbnailURL = th.High.Url
			case th.Medium != nil:
				details.ThumbnailURL = th.Medium.Url
			case th.Default != nil:
				details.ThumbnailURL = th.Default.Url
			}
		}
	}
	if item.Statistics != nil {
		details.ViewCount = item.Statistics.ViewCount
		details.LikeCount = item.Statistics.LikeCount
		details.CommentCount = item.Statistics.CommentCount
	}
	return details, nil
}
