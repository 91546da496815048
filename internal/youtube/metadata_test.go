package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "test-key", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func TestVideoDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc12345678", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [{
				"id": "abc12345678",
				"snippet": {
					"title": "Demo video",
					"channelTitle": "Demo channel",
					"publishedAt": "2024-01-02T03:04:05Z",
					"thumbnails": {"high": {"url": "https://i.ytimg.com/high.jpg"}}
				},
				"statistics": {"viewCount": "1000", "likeCount": "50", "commentCount": "7"}
			}]
		}`))
	})

	details, err := c.VideoDetails(context.Background(), "abc12345678")
	require.NoError(t, err)
	assert.Equal(t, "Demo video", details.Title)
	assert.Equal(t, "Demo channel", details.ChannelTitle)
	assert.Equal(t, "https://i.ytimg.com/high.jpg", details.ThumbnailURL)
	assert.Equal(t, uint64(1000), details.ViewCount)
	assert.Equal(t, uint64(50), details.LikeCount)
	assert.Equal(t, uint64(7), details.CommentCount)
}

func TestVideoDetails_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	_, err := c.VideoDetails(context.Background(), "missing")
	require.ErrorIs(t, err, ErrVideoNotFound)
}

func TestVideoDetails_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"code": 403, "message": "quotaExceeded"}}`))
	})

	_, err := c.VideoDetails(context.Background(), "abc")
	assert.Error(t, err)
}
