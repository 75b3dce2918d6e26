// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/castletter/internal/config"
	"github.com/hitoshi/castletter/internal/database"
	"github.com/hitoshi/castletter/internal/feed"
	"github.com/hitoshi/castletter/internal/handler"
	"github.com/hitoshi/castletter/internal/llm"
	"github.com/hitoshi/castletter/internal/logger"
	"github.com/hitoshi/castletter/internal/mail"
	"github.com/hitoshi/castletter/internal/metrics"
	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/repository"
	"github.com/hitoshi/castletter/internal/security"
	"github.com/hitoshi/castletter/internal/whisper"
	"github.com/hitoshi/castletter/internal/worker/digest"
	"github.com/hitoshi/castletter/internal/worker/newsletter"
	"github.com/hitoshi/castletter/internal/worker/poll"
	"github.com/hitoshi/castletter/internal/worker/transcribe"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// pipeline はパイプライン4ステージのワーカー一式。
// serveモードはcronエンドポイント経由で1回実行し、
// workerモードは各ステージを定期実行ループとして起動する。
type pipeline struct {
	poller      *poll.Poller
	transcriber *transcribe.Worker
	generator   *newsletter.Generator
	dispatcher  *digest.Dispatcher
}

// buildPipeline はDB接続と設定からパイプライン全体をワイヤリングする。
func buildPipeline(cfg *config.Config, db *sql.DB, rec metrics.Recorder, log *slog.Logger) *pipeline {
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	episodeRepo := repository.NewPostgresEpisodeRepo(db)
	newsletterRepo := repository.NewPostgresNewsletterRepo(db)
	settingsRepo := repository.NewPostgresUserSettingsRepo(db)
	logRepo := repository.NewPostgresFeedCheckLogRepo(db)

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	parser := feed.NewParser(ssrfGuard, cfg.FeedFetchTimeout, cfg.FeedMaxBodySize)
	poller := poll.NewPoller(
		subRepo, episodeRepo, logRepo, parser, sanitizer, rec, log,
		cfg.PollMaxSubscriptions, cfg.PollMaxConcurrent, cfg.MaxEpisodesPerFeed,
		cfg.RecencyWindow,
	)

	audioFetcher := transcribe.NewHTTPAudioFetcher(ssrfGuard, cfg.AudioDownloadTimeout, cfg.AudioMaxBytes)
	whisperClient := whisper.NewClient(cfg.OpenAIAPIKey, cfg.TranscribeTimeout, log)
	transcriber := transcribe.NewWorker(
		episodeRepo, audioFetcher, whisperClient, rec, log,
		cfg.TranscribeBatchSize, cfg.WhisperMaxBytes, cfg.AudioTruncateBytes,
	)

	completer := llm.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.CompletionModel, cfg.CompletionTimeout)
	generator := newsletter.NewGenerator(
		episodeRepo, newsletterRepo, completer, rec, log,
		cfg.GenerateBatchSize, cfg.TranscriptMaxChars,
	)

	sender := mail.NewResendClient(cfg.ResendAPIKey, cfg.FromEmail, cfg.MailSendTimeout, log)
	dispatcher := digest.NewDispatcher(
		settingsRepo, subRepo, episodeRepo, newsletterRepo, sender, rec, log,
		cfg.DigestMaxUsers, cfg.BaseURL+"/settings",
	)

	return &pipeline{
		poller:      poller,
		transcriber: transcriber,
		generator:   generator,
		dispatcher:  dispatcher,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスとパイプラインのワイヤリング
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	pipe := buildPipeline(cfg, db, collector, slog.Default())

	// 3. ユーザー向けAPIのサービス層
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	settingsRepo := repository.NewPostgresUserSettingsRepo(db)
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	parser := feed.NewParser(ssrfGuard, cfg.FeedFetchTimeout, cfg.FeedMaxBodySize)
	feedService := feed.NewService(subRepo, parser, sanitizer)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral), slog.Default(),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		DB:          db,
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		CronSecret:  cfg.CronSecret,
		Gatherer:    registry,

		FeedPreviewer:       feedService,
		SubscriptionService: feedService,
		SettingsStore:       settingsRepo,

		FeedChecker: pipe.poller,
		Transcriber: pipe.transcriber,
		Generator:   pipe.generator,
		Dispatcher:  pipe.dispatcher,
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// パイプライン4ステージをそれぞれの間隔で定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. パイプラインのワイヤリング
	collector := metrics.NewCollector(prometheus.NewRegistry())
	pipe := buildPipeline(cfg, db, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Duration("transcribe_interval", cfg.TranscribeInterval),
		slog.Duration("generate_interval", cfg.GenerateInterval),
		slog.Duration("digest_interval", cfg.DigestInterval),
	)

	// 下流ステージをバックグラウンドで起動
	go pipe.transcriber.Start(ctx, cfg.TranscribeInterval)
	go pipe.generator.Start(ctx, cfg.GenerateInterval)
	go pipe.dispatcher.Start(ctx, cfg.DigestInterval)

	// フィードポーラーをメインgoroutineで実行（ブロッキング）
	pipe.poller.Start(ctx, cfg.PollInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
