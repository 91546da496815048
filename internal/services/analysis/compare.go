package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/comment-analytics/internal/lib/apperr"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/sl"
	"github.com/magabrotheeeer/comment-analytics/internal/lib/youtubeurl"
	"github.com/magabrotheeeer/comment-analytics/internal/metrics"
	"github.com/magabrotheeeer/comment-analytics/internal/models"
)

const unableToCompare = "Unable to compare the videos at the moment"

// DegradedInsights ответ сравнения, когда модель не ответила или ответила мусором.
func DegradedInsights() models.ComparisonInsights {
	return models.ComparisonInsights{
		SentimentComparison:       unableToCompare,
		EngagementComparison:      unableToCompare,
		TopicsComparison:          unableToCompare,
		CommunityHealthComparison: unableToCompare,
		Recommendations:           []string{"Try the comparison again later"},
	}
}

// Compare сравнивает два видео. Каждая сторона берется из готового анализа по id,
// из последнего завершенного анализа того же видео или запускается заново.
// Ошибка генерации сравнения не ломает ответ, а возвращает DegradedInsights.
func (s *Service) Compare(ctx context.Context, userID string, req models.CompareRequest) (*models.CompareResult, error) {
	const op = "analysis.Compare"
	if userID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUnauthorized)
	}

	videos := make([]models.ComparedVideo, 2)
	var resolvers [2]func(context.Context) (*models.ComparedVideo, error)
	switch {
	case len(req.AnalysisIDs) == 2 && len(req.VideoURLs) == 0:
		for i, id := range req.AnalysisIDs {
			resolvers[i] = func(ctx context.Context) (*models.ComparedVideo, error) {
				return s.resolveByID(ctx, userID, id)
			}
		}
	case len(req.VideoURLs) == 2 && len(req.AnalysisIDs) == 0:
		for i, u := range req.VideoURLs {
			if !youtubeurl.IsValid(u) || youtubeurl.ExtractVideoID(u) == "" {
				return nil, fmt.Errorf("%s: %w: video %d is not a YouTube video URL", op, apperr.ErrInvalidInput, i+1)
			}
		}
		// Готовые анализы берутся сразу, новые запускаются только если на все хватает лимита.
		var pending []int
		for i, u := range req.VideoURLs {
			a, err := s.repo.FindCompletedByVideo(ctx, userID, youtubeurl.ExtractVideoID(u))
			switch {
			case err == nil:
				videos[i] = *compared(a, true)
			case errors.Is(err, apperr.ErrNotFound):
				pending = append(pending, i)
			default:
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		if len(pending) > 0 {
			if err := s.checkQuota(ctx, userID, len(pending)); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		for _, i := range pending {
			u := req.VideoURLs[i]
			resolvers[i] = func(ctx context.Context) (*models.ComparedVideo, error) {
				return s.submitForCompare(ctx, userID, u)
			}
		}
	default:
		return nil, fmt.Errorf("%s: %w: provide exactly two video_urls or two analysis_ids", op, apperr.ErrInvalidInput)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, resolve := range resolvers {
		if resolve == nil {
			continue
		}
		g.Go(func() error {
			v, err := resolve(gctx)
			if err != nil {
				return err
			}
			videos[i] = *v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	insights, degraded := s.compareInsights(ctx, videos)
	return &models.CompareResult{
		Status:     "success",
		Videos:     videos,
		Comparison: insights,
		Degraded:   degraded,
	}, nil
}

func (s *Service) resolveByID(ctx context.Context, userID, id string) (*models.ComparedVideo, error) {
	a, err := s.Status(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.Sentiment.Status != models.AnalysisCompleted {
		return nil, fmt.Errorf("%w: analysis %s is not completed", apperr.ErrInvalidInput, id)
	}
	return compared(a, true), nil
}

// checkQuota проверяет, что на needed новых анализов хватает слотов тарифа FREE.
func (s *Service) checkQuota(ctx context.Context, userID string, needed int) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsPro() && user.AnalysisCount+needed > s.opts.FreeAnalysisLimit {
		metrics.QuotaRejections.Inc()
		metrics.AnalysesTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return fmt.Errorf("%w: comparison needs %d new analyses", apperr.ErrQuotaExceeded, needed)
	}
	return nil
}

func (s *Service) submitForCompare(ctx context.Context, userID, videoURL string) (*models.ComparedVideo, error) {
	res, err := s.Submit(ctx, userID, videoURL)
	if err != nil {
		return nil, err
	}
	return compared(res.Analysis, false), nil
}

func compared(a *models.Analysis, reused bool) *models.ComparedVideo {
	return &models.ComparedVideo{
		AnalysisID: a.ID,
		VideoURL:   a.VideoURL,
		VideoID:    a.VideoID,
		Reused:     reused,
		Statistics: a.Statistics,
		AIAnalysis: a.AIAnalysis,
		Video:      a.Video,
	}
}

func (s *Service) compareInsights(ctx context.Context, videos []models.ComparedVideo) (models.ComparisonInsights, bool) {
	const op = "analysis.compareInsights"
	log := s.log.With(slog.String("op", op))

	raw, err := callAnalyzer(ctx, "complete", func(ctx context.Context) (json.RawMessage, error) {
		return s.analyzer.Complete(ctx, comparisonPrompt(videos))
	})
	if err != nil {
		log.Warn("comparison generation failed", sl.Err(err))
		return DegradedInsights(), true
	}
	insights, err := parseInsights(raw)
	if err != nil {
		log.Warn("comparison response is not usable", sl.Err(err))
		return DegradedInsights(), true
	}
	return *insights, false
}

func comparisonPrompt(videos []models.ComparedVideo) string {
	var b strings.Builder
	b.WriteString("Compare the YouTube comment sections of two videos. ")
	b.WriteString("Respond with JSON only, with string fields sentiment_comparison, engagement_comparison, ")
	b.WriteString("topics_comparison, community_health_comparison and an array of strings recommendations.\n")
	for i, v := range videos {
		st := v.Statistics
		fmt.Fprintf(&b, "\nVideo %d: %s\n", i+1, v.VideoURL)
		if v.Video != nil && v.Video.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", v.Video.Title)
		}
		fmt.Fprintf(&b, "Comments: %d; positive %d, neutral %d, negative %d; average sentiment %.2f\n",
			st.TotalComments, st.Sentiment.Positive, st.Sentiment.Neutral, st.Sentiment.Negative, st.AverageSentiment)
		fmt.Fprintf(&b, "Average likes %.2f; engagement rate %.4f\n", st.AverageLikes, st.EngagementRate)
		if len(st.TopKeywords) > 0 {
			fmt.Fprintf(&b, "Top keywords: %s\n", strings.Join(st.TopKeywords, ", "))
		}
		ai := v.AIAnalysis
		if ai.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", ai.Summary)
		}
		if len(ai.Topics) > 0 {
			names := make([]string, 0, len(ai.Topics))
			for _, t := range ai.Topics {
				names = append(names, t.Name)
			}
			fmt.Fprintf(&b, "Topics: %s\n", strings.Join(names, ", "))
		}
		if ai.CommunityHealth != "" {
			fmt.Fprintf(&b, "Community health: %s\n", ai.CommunityHealth)
		}
	}
	return b.String()
}

var errEmptyInsights = errors.New("comparison has no content")

// parseInsights разбирает ответ модели. Ответ бывает готовым объектом или строкой
// в поле text/response, иногда обернутой в markdown-блок ```json.
func parseInsights(raw json.RawMessage) (*models.ComparisonInsights, error) {
	var insights models.ComparisonInsights
	if err := json.Unmarshal(raw, &insights); err == nil && insights.SentimentComparison != "" {
		if insights.Recommendations == nil {
			insights.Recommendations = []string{}
		}
		return &insights, nil
	}

	var wrapper struct {
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	var text string
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		text = wrapper.Text
		if text == "" {
			text = wrapper.Response
		}
	} else if err := json.Unmarshal(raw, &text); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}

	insights = models.ComparisonInsights{}
	if err := json.Unmarshal([]byte(text), &insights); err != nil {
		return nil, err
	}
	if insights.SentimentComparison == "" {
		return nil, errEmptyInsights
	}
	if insights.Recommendations == nil {
		insights.Recommendations = []string{}
	}
	return &insights, nil
}
