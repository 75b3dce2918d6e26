package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/castletter/internal/metrics"
	"github.com/hitoshi/castletter/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	DB          *sql.DB
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	CronSecret  string
	Gatherer    prometheus.Gatherer

	// サービス
	FeedPreviewer       FeedPreviewer
	SubscriptionService SubscriptionServiceInterface
	SettingsStore       SettingsStore

	// パイプラインステージ
	FeedChecker FeedCheckRunner
	Transcriber TranscribeRunner
	Generator   NewsletterRunner
	Dispatcher  DigestRunner
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを
// 構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → (ルート別) CronAuth / UserID → RateLimit
//
// /health と /metrics は認証・レート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	podcastHandler := NewPodcastHandler(deps.FeedPreviewer)
	subHandler := NewSubscriptionHandler(deps.SubscriptionService)
	settingsHandler := NewSettingsHandler(deps.SettingsStore)
	cronHandler := NewCronHandler(deps.FeedChecker, deps.Transcriber, deps.Generator, deps.Dispatcher, deps.Logger)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- cronルート（Bearerトークン認証） ---

	r.Route("/api/cron", func(r chi.Router) {
		r.Use(middleware.NewCronAuthMiddleware(deps.CronSecret, deps.Logger))

		r.Post("/check-new-episodes", cronHandler.CheckFeeds)
		r.Post("/transcribe-episodes", cronHandler.Transcribe)
		r.Post("/generate-newsletters", cronHandler.GenerateNewsletters)
		r.Post("/send-newsletters", cronHandler.SendNewsletters)
	})

	// --- ユーザー認証が必要なルート ---
	// ミドルウェアスタック: UserID → RateLimit(General)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewUserIDMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// フィード検証（外部フェッチを伴うため専用レート制限を追加）
		r.With(deps.RateLimiter.ValidateMiddleware()).
			Post("/api/podcasts/validate", podcastHandler.Validate)

		// 購読管理
		r.Route("/api/subscriptions", func(r chi.Router) {
			r.With(deps.RateLimiter.ValidateMiddleware()).Post("/", subHandler.Subscribe)
			r.Get("/", subHandler.List)
			r.Delete("/{id}", subHandler.Unsubscribe)
		})

		// 配信設定
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
		})
	})

	return r
}

// NewHealthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func NewHealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
