package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/model"
	"github.com/hitoshi/castletter/internal/worker/digest"
	"github.com/hitoshi/castletter/internal/worker/newsletter"
	"github.com/hitoshi/castletter/internal/worker/poll"
	"github.com/hitoshi/castletter/internal/worker/transcribe"
)

type stubFeedChecker struct {
	summary poll.Summary
	err     error
	calls   int
}

func (s *stubFeedChecker) RunOnce(ctx context.Context) (poll.Summary, error) {
	s.calls++
	return s.summary, s.err
}

type stubTranscribeRunner struct {
	summary transcribe.Summary
	calls   int
}

func (s *stubTranscribeRunner) RunOnce(ctx context.Context) (transcribe.Summary, error) {
	s.calls++
	return s.summary, nil
}

type stubNewsletterRunner struct {
	summary newsletter.Summary
	calls   int
}

func (s *stubNewsletterRunner) RunOnce(ctx context.Context) (newsletter.Summary, error) {
	s.calls++
	return s.summary, nil
}

type stubDigestRunner struct {
	summary digest.Summary
	calls   int
}

func (s *stubDigestRunner) RunOnce(ctx context.Context) (digest.Summary, error) {
	s.calls++
	return s.summary, nil
}

type routerFixture struct {
	router      http.Handler
	feedChecker *stubFeedChecker
	transcriber *stubTranscribeRunner
	generator   *stubNewsletterRunner
	dispatcher  *stubDigestRunner
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(120), logger)
	t.Cleanup(rl.Stop)

	f := &routerFixture{
		feedChecker: &stubFeedChecker{summary: poll.Summary{Examined: 3, Succeeded: 2, Failed: 1, EpisodesFound: 5}},
		transcriber: &stubTranscribeRunner{},
		generator:   &stubNewsletterRunner{},
		dispatcher:  &stubDigestRunner{},
	}
	f.router = NewRouter(&RouterDeps{
		Logger:              logger,
		RateLimiter:         rl,
		CronSecret:          "cron-secret",
		Gatherer:            prometheus.NewRegistry(),
		FeedPreviewer:       &stubPreviewer{preview: &model.FeedPreview{Title: "Testcast", FeedURL: "https://example.com/feed.xml"}},
		SubscriptionService: &stubSubscriptionService{},
		SettingsStore:       newStubSettingsStore(),
		FeedChecker:         f.feedChecker,
		Transcriber:         f.transcriber,
		Generator:           f.generator,
		Dispatcher:          f.dispatcher,
	})
	return f
}

func TestRouter_HealthWithoutDatabase(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRouter_CronWithoutTokenReturns401(t *testing.T) {
	f := newRouterFixture(t)

	for _, path := range []string{
		"/api/cron/check-new-episodes",
		"/api/cron/transcribe-episodes",
		"/api/cron/generate-newsletters",
		"/api/cron/send-newsletters",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
	// 認証失敗時は一切のステージが実行されない
	if f.feedChecker.calls+f.transcriber.calls+f.generator.calls+f.dispatcher.calls != 0 {
		t.Error("認証失敗でパイプラインが実行された")
	}
}

func TestRouter_CronCheckFeedsReturnsSummary(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/cron/check-new-episodes", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var summary poll.Summary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("body decode failed: %v", err)
	}
	// 部分的な失敗があっても200で集計を返す
	if summary.Examined != 3 || summary.Failed != 1 || summary.EpisodesFound != 5 {
		t.Errorf("summary = %+v", summary)
	}
	if f.feedChecker.calls != 1 {
		t.Errorf("feedChecker calls = %d", f.feedChecker.calls)
	}
}

func TestRouter_CronPipelineStagesReturn200(t *testing.T) {
	f := newRouterFixture(t)
	f.transcriber.summary = transcribe.Summary{Examined: 1, Succeeded: 1}
	f.generator.summary = newsletter.Summary{Examined: 2, Succeeded: 2}
	f.dispatcher.summary = digest.Summary{Examined: 1, Sent: 1, EpisodesSent: 3}

	for _, path := range []string{
		"/api/cron/transcribe-episodes",
		"/api/cron/generate-newsletters",
		"/api/cron/send-newsletters",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer cron-secret")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, body = %s", path, rec.Code, rec.Body.String())
		}
	}
	if f.transcriber.calls != 1 || f.generator.calls != 1 || f.dispatcher.calls != 1 {
		t.Errorf("calls = %d/%d/%d, want 1/1/1",
			f.transcriber.calls, f.generator.calls, f.dispatcher.calls)
	}
}

func TestRouter_CronCheckFeedsReturns500OnListFailure(t *testing.T) {
	f := newRouterFixture(t)
	f.feedChecker.err = errors.New("購読一覧の取得に失敗しました")

	req := httptest.NewRequest(http.MethodPost, "/api/cron/check-new-episodes", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRouter_APIRoutesRequireUser(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRouter_SubscriptionsListWithUser(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ValidateEndpointWired(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/podcasts/validate",
		strings.NewReader(`{"url": "https://example.com/feed.xml"}`))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
