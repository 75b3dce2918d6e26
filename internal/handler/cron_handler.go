package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/castletter/internal/middleware"
	"github.com/hitoshi/castletter/internal/worker/digest"
	"github.com/hitoshi/castletter/internal/worker/newsletter"
	"github.com/hitoshi/castletter/internal/worker/poll"
	"github.com/hitoshi/castletter/internal/worker/transcribe"
)

// パイプライン各ステージの実行インターフェース。
// cronエンドポイントはステージを1回実行し、集計結果をそのまま返す。
type (
	// FeedCheckRunner はフィードポーリングの1回実行。
	FeedCheckRunner interface {
		RunOnce(ctx context.Context) (poll.Summary, error)
	}
	// TranscribeRunner は文字起こしの1回実行。
	TranscribeRunner interface {
		RunOnce(ctx context.Context) (transcribe.Summary, error)
	}
	// NewsletterRunner はニュースレター生成の1回実行。
	NewsletterRunner interface {
		RunOnce(ctx context.Context) (newsletter.Summary, error)
	}
	// DigestRunner はダイジェスト配信の1回実行。
	DigestRunner interface {
		RunOnce(ctx context.Context) (digest.Summary, error)
	}
)

// CronHandler は外部スケジューラーから呼ばれるパイプライン実行ハンドラー。
// 各エンドポイントはステージを1回実行し、部分的な失敗があっても
// 集計結果とともに200を返す。500を返すのは処理対象の列挙自体が
// 失敗した場合のみ。
type CronHandler struct {
	feedChecker FeedCheckRunner
	transcriber TranscribeRunner
	generator   NewsletterRunner
	dispatcher  DigestRunner
	logger      *slog.Logger
}

// NewCronHandler はCronHandlerを生成する。
func NewCronHandler(
	feedChecker FeedCheckRunner,
	transcriber TranscribeRunner,
	generator NewsletterRunner,
	dispatcher DigestRunner,
	logger *slog.Logger,
) *CronHandler {
	return &CronHandler{
		feedChecker: feedChecker,
		transcriber: transcriber,
		generator:   generator,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// CheckFeeds は全購読のフィードチェックを1回実行する。
// POST /api/cron/check-new-episodes
func (h *CronHandler) CheckFeeds(w http.ResponseWriter, r *http.Request) {
	summary, err := h.feedChecker.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("フィードチェックの実行に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Transcribe は文字起こしを1バッチ実行する。
// POST /api/cron/transcribe-episodes
func (h *CronHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	summary, err := h.transcriber.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("文字起こしの実行に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GenerateNewsletters はニュースレター生成を1バッチ実行する。
// POST /api/cron/generate-newsletters
func (h *CronHandler) GenerateNewsletters(w http.ResponseWriter, r *http.Request) {
	summary, err := h.generator.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("ニュースレター生成の実行に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// SendNewsletters はダイジェスト配信を1回実行する。
// POST /api/cron/send-newsletters
func (h *CronHandler) SendNewsletters(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dispatcher.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("ダイジェスト配信の実行に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
