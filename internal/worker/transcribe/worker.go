// Package transcribe は保留中エピソードの音声文字起こしを行う。
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/castletter/internal/metrics"
	"github.com/hitoshi/castletter/internal/model"
	"github.com/hitoshi/castletter/internal/repository"
	"github.com/hitoshi/castletter/internal/whisper"
)

// Summary は1回の文字起こし実行の集計結果。
type Summary struct {
	Examined  int `json:"examined"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Worker はpending_transcriptionのエピソードを古い順に処理するワーカー。
// 処理開始前に条件付きUPDATEでエピソードをクレームするため、
// 同時に複数インスタンスが動いても同一エピソードが二重処理されることはない。
type Worker struct {
	episodeRepo     repository.EpisodeRepository
	fetcher         AudioFetcher
	transcriber     whisper.Transcriber
	metrics         metrics.Recorder
	logger          *slog.Logger
	batchSize       int
	whisperMaxBytes int64
	truncateBytes   int64
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// batchSizeが0以下の場合は1件ずつ処理する。
func NewWorker(
	episodeRepo repository.EpisodeRepository,
	fetcher AudioFetcher,
	transcriber whisper.Transcriber,
	rec metrics.Recorder,
	logger *slog.Logger,
	batchSize int,
	whisperMaxBytes, truncateBytes int64,
) *Worker {
	if batchSize <= 0 {
		batchSize = 1
	}
	if whisperMaxBytes <= 0 {
		whisperMaxBytes = 25 * 1024 * 1024
	}
	if truncateBytes <= 0 {
		truncateBytes = 10 * 1024 * 1024
	}
	return &Worker{
		episodeRepo:     episodeRepo,
		fetcher:         fetcher,
		transcriber:     transcriber,
		metrics:         rec,
		logger:          logger,
		batchSize:       batchSize,
		whisperMaxBytes: whisperMaxBytes,
		truncateBytes:   truncateBytes,
	}
}

// Start は指定間隔で文字起こしを繰り返し実行する。
// コンテキストのキャンセルで停止する。起動直後に1回実行する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	w.logger.Info("文字起こしワーカーを開始します",
		slog.Duration("interval", interval),
		slog.Int("batch_size", w.batchSize),
	)

	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("文字起こし実行に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("文字起こしワーカーを停止します")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("文字起こし実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は保留中エピソードを1バッチ分、公開日時の古い順に処理する。
// 対象の列挙に失敗した場合のみエラーを返す。個別エピソードの失敗は
// ステータス遷移として記録され、処理は続行される。
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	episodes, err := w.episodeRepo.ListByStatus(ctx, model.StatusPendingTranscription, w.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("保留中エピソードの取得に失敗しました: %w", err)
	}

	summary := Summary{Examined: len(episodes)}
	for _, ep := range episodes {
		claimed, err := w.episodeRepo.ClaimStatus(ctx, ep.ID, model.StatusPendingTranscription, model.StatusTranscribing)
		if err != nil {
			summary.Failed++
			w.logger.Error("エピソードのクレームに失敗しました",
				slog.String("episode_id", ep.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !claimed {
			// 別インスタンスが先にクレームした
			summary.Skipped++
			continue
		}

		if err := w.transcribeEpisode(ctx, ep); err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
	}

	if summary.Examined > 0 {
		w.logger.Info("文字起こし実行が完了しました",
			slog.Int("examined", summary.Examined),
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("failed", summary.Failed),
			slog.Int("skipped", summary.Skipped),
		)
	}
	return summary, nil
}

// transcribeEpisode はクレーム済みの1エピソードを文字起こしする。
// フロー: 音声ダウンロード → サイズ判定（必要なら先頭切り出し） →
// Whisper呼び出し → 転写保存。
func (w *Worker) transcribeEpisode(ctx context.Context, ep *model.Episode) error {
	data, contentType, err := w.fetcher.Fetch(ctx, ep.AudioURL)
	if err != nil {
		w.recordFailure(ctx, ep, fmt.Errorf("音声の取得に失敗しました: %w", err))
		return err
	}

	var errorNote *string
	var partialPct float64
	if int64(len(data)) > w.whisperMaxBytes {
		partialPct = float64(w.truncateBytes) / float64(len(data)) * 100
		note := fmt.Sprintf("Teiltranskript (Audio > 25MB): ca. %.0f%% der Episode transkribiert", partialPct)
		errorNote = &note
		data = data[:w.truncateBytes]
		w.logger.Warn("音声が大きいため先頭のみを文字起こしします",
			slog.String("episode_id", ep.ID),
			slog.Int64("truncate_bytes", w.truncateBytes),
		)
	}

	transcript, err := w.transcriber.Transcribe(ctx, data, InferFilename(ep.AudioURL, contentType))
	if err != nil {
		w.recordFailure(ctx, ep, fmt.Errorf("文字起こしに失敗しました: %w", err))
		return err
	}

	if transcript == "" {
		err := model.NewPermanentError("Keine Sprache erkannt oder leeres Transkript", nil)
		w.recordFailure(ctx, ep, err)
		return err
	}

	// 部分転写は転写本文にもカバー率の注記を残す
	if errorNote != nil {
		transcript += fmt.Sprintf("\n\n[Hinweis: Transkript enthält ca. %.0f%% der Episode]", partialPct)
	}

	if err := w.episodeRepo.SaveTranscript(ctx, ep.ID, transcript, errorNote); err != nil {
		w.recordFailure(ctx, ep, fmt.Errorf("転写の保存に失敗しました: %w", err))
		return err
	}

	w.metrics.RecordTranscription(metrics.OutcomeSuccess)
	w.logger.Info("文字起こしが完了しました",
		slog.String("episode_id", ep.ID),
		slog.Int("transcript_chars", len(transcript)),
	)
	return nil
}

// recordFailure は失敗を分類してステータスを遷移させる。
// 恒久的失敗はfailed、一時的失敗はpending_transcriptionへ巻き戻して
// 次回実行時に再試行させる。
func (w *Worker) recordFailure(ctx context.Context, ep *model.Episode, cause error) {
	msg := cause.Error()

	var to model.EpisodeStatus
	var outcome string
	if model.ClassifyError(cause) == model.FailurePermanent {
		to = model.StatusFailed
		outcome = metrics.OutcomePermanent
	} else {
		to = model.StatusPendingTranscription
		outcome = metrics.OutcomeTransient
		msg = "Temporärer Fehler: " + msg
	}

	if err := w.episodeRepo.UpdateStatus(ctx, ep.ID, model.StatusTranscribing, to, &msg); err != nil {
		w.logger.Error("失敗ステータスの記録に失敗しました",
			slog.String("episode_id", ep.ID),
			slog.String("error", err.Error()),
		)
	}
	w.metrics.RecordTranscription(outcome)
	w.logger.Warn("文字起こしに失敗しました",
		slog.String("episode_id", ep.ID),
		slog.String("to_status", string(to)),
		slog.String("error", cause.Error()),
	)
}
