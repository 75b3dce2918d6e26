// Package newsletter は転写済みエピソードからニュースレターを生成する。
package newsletter

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/castletter/internal/llm"
	"github.com/hitoshi/castletter/internal/metrics"
	"github.com/hitoshi/castletter/internal/model"
	"github.com/hitoshi/castletter/internal/repository"
)

//go:embed prompt.txt
var systemPrompt string

// truncationMarker は切り詰めた転写の末尾に付与する注記。
const truncationMarker = "\n\n[Transkript gekürzt]"

// Summary は1回の生成実行の集計結果。
type Summary struct {
	Examined  int `json:"examined"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Generator はtranscribedのエピソードを古い順に処理し、
// LLMでニュースレターを生成するワーカー。
// レート制限を避けるためバッチ内は逐次処理する。
type Generator struct {
	episodeRepo        repository.EpisodeRepository
	newsletterRepo     repository.NewsletterRepository
	completer          llm.Completer
	metrics            metrics.Recorder
	logger             *slog.Logger
	batchSize          int
	transcriptMaxChars int
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
// batchSizeが0以下の場合は2、transcriptMaxCharsが0以下の場合は
// 150000文字を使用する。
func NewGenerator(
	episodeRepo repository.EpisodeRepository,
	newsletterRepo repository.NewsletterRepository,
	completer llm.Completer,
	rec metrics.Recorder,
	logger *slog.Logger,
	batchSize, transcriptMaxChars int,
) *Generator {
	if batchSize <= 0 {
		batchSize = 2
	}
	if transcriptMaxChars <= 0 {
		transcriptMaxChars = 150000
	}
	return &Generator{
		episodeRepo:        episodeRepo,
		newsletterRepo:     newsletterRepo,
		completer:          completer,
		metrics:            rec,
		logger:             logger,
		batchSize:          batchSize,
		transcriptMaxChars: transcriptMaxChars,
	}
}

// Start は指定間隔でニュースレター生成を繰り返し実行する。
// コンテキストのキャンセルで停止する。起動直後に1回実行する。
func (g *Generator) Start(ctx context.Context, interval time.Duration) {
	g.logger.Info("ニュースレター生成ワーカーを開始します",
		slog.Duration("interval", interval),
		slog.Int("batch_size", g.batchSize),
	)

	if _, err := g.RunOnce(ctx); err != nil {
		g.logger.Error("ニュースレター生成に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("ニュースレター生成ワーカーを停止します")
			return
		case <-ticker.C:
			if _, err := g.RunOnce(ctx); err != nil {
				g.logger.Error("ニュースレター生成に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は転写済みエピソードを1バッチ分、公開日時の古い順に逐次処理する。
// 対象の列挙に失敗した場合のみエラーを返す。
func (g *Generator) RunOnce(ctx context.Context) (Summary, error) {
	episodes, err := g.episodeRepo.ListByStatus(ctx, model.StatusTranscribed, g.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("転写済みエピソードの取得に失敗しました: %w", err)
	}

	summary := Summary{Examined: len(episodes)}
	for _, ep := range episodes {
		claimed, err := g.episodeRepo.ClaimStatus(ctx, ep.ID, model.StatusTranscribed, model.StatusGeneratingNewsletter)
		if err != nil {
			summary.Failed++
			g.logger.Error("エピソードのクレームに失敗しました",
				slog.String("episode_id", ep.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !claimed {
			summary.Skipped++
			continue
		}

		if err := g.generateForEpisode(ctx, ep); err != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
	}

	if summary.Examined > 0 {
		g.logger.Info("ニュースレター生成が完了しました",
			slog.Int("examined", summary.Examined),
			slog.Int("succeeded", summary.Succeeded),
			slog.Int("failed", summary.Failed),
			slog.Int("skipped", summary.Skipped),
		)
	}
	return summary, nil
}

// generateForEpisode はクレーム済みの1エピソードのニュースレターを生成する。
// 過去の実行でニュースレター作成後にステータス更新だけが失敗していた場合は、
// 既存のニュースレターを再利用してready化する。
func (g *Generator) generateForEpisode(ctx context.Context, ep *model.Episode) error {
	existing, err := g.newsletterRepo.FindByEpisodeID(ctx, ep.ID)
	if err != nil {
		g.recordFailure(ctx, ep, model.NewTransientError("既存ニュースレターの確認に失敗しました", err))
		return err
	}
	if existing != nil {
		if err := g.episodeRepo.UpdateStatus(ctx, ep.ID, model.StatusGeneratingNewsletter, model.StatusNewsletterReady, nil); err != nil {
			g.logger.Error("ステータス更新に失敗しました", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
			return err
		}
		g.metrics.RecordNewsletterGeneration(metrics.OutcomeSuccess)
		return nil
	}

	if ep.Transcript == nil || *ep.Transcript == "" {
		err := model.NewPermanentError("Kein Transkript vorhanden", nil)
		g.recordFailure(ctx, ep, err)
		return err
	}

	transcript := truncateTranscript(*ep.Transcript, g.transcriptMaxChars)
	userMessage := fmt.Sprintf("Episode: %s\n\nTranskript:\n%s", ep.Title, transcript)

	output, err := g.completer.Complete(ctx, systemPrompt, userMessage)
	if err != nil {
		g.recordFailure(ctx, ep, fmt.Errorf("LLM呼び出しに失敗しました: %w", err))
		return err
	}
	if strings.TrimSpace(output) == "" {
		err := model.NewPermanentError("Keine Textantwort vom Modell erhalten", nil)
		g.recordFailure(ctx, ep, err)
		return err
	}

	sections := ParseSections(output)
	nl := &model.Newsletter{
		ID:           uuid.New().String(),
		EpisodeID:    ep.ID,
		Intro:        sections.Intro,
		BulletPoints: sections.BulletPoints,
		KeyTakeaways: sections.KeyTakeaways,
		ActionItems:  sections.ActionItems,
		Quotes:       sections.Quotes,
		Speakers:     sections.Speakers,
		CreatedAt:    time.Now().UTC(),
	}
	if sections.Reflection != "" {
		nl.Reflection = &sections.Reflection
	}

	if err := g.newsletterRepo.Create(ctx, nl); err != nil {
		g.recordFailure(ctx, ep, model.NewTransientError("ニュースレターの保存に失敗しました", err))
		return err
	}

	if err := g.episodeRepo.UpdateStatus(ctx, ep.ID, model.StatusGeneratingNewsletter, model.StatusNewsletterReady, nil); err != nil {
		// ニュースレターは保存済み。次回実行時に既存行の再利用でready化される。
		g.logger.Error("ステータス更新に失敗しました", slog.String("episode_id", ep.ID), slog.String("error", err.Error()))
		return err
	}

	g.metrics.RecordNewsletterGeneration(metrics.OutcomeSuccess)
	g.logger.Info("ニュースレターを生成しました",
		slog.String("episode_id", ep.ID),
		slog.Int("bullet_points", len(nl.BulletPoints)),
	)
	return nil
}

// recordFailure は失敗を分類してステータスを遷移させる。
// 恒久的失敗はnewsletter_failed、一時的失敗はtranscribedへ巻き戻して
// 次回実行時に再試行させる。
func (g *Generator) recordFailure(ctx context.Context, ep *model.Episode, cause error) {
	msg := cause.Error()

	var to model.EpisodeStatus
	var outcome string
	if model.ClassifyError(cause) == model.FailurePermanent {
		to = model.StatusNewsletterFailed
		outcome = metrics.OutcomePermanent
	} else {
		to = model.StatusTranscribed
		outcome = metrics.OutcomeTransient
		msg = "Temporärer Fehler: " + msg
	}

	if err := g.episodeRepo.UpdateStatus(ctx, ep.ID, model.StatusGeneratingNewsletter, to, &msg); err != nil {
		g.logger.Error("失敗ステータスの記録に失敗しました",
			slog.String("episode_id", ep.ID),
			slog.String("error", err.Error()),
		)
	}
	g.metrics.RecordNewsletterGeneration(outcome)
	g.logger.Warn("ニュースレター生成に失敗しました",
		slog.String("episode_id", ep.ID),
		slog.String("to_status", string(to)),
		slog.String("error", cause.Error()),
	)
}

// truncateTranscript は転写をmaxChars文字（rune単位）に切り詰める。
// 切り詰めた場合は末尾に注記を付与する。
func truncateTranscript(transcript string, maxChars int) string {
	runes := []rune(transcript)
	if len(runes) <= maxChars {
		return transcript
	}
	return string(runes[:maxChars]) + truncationMarker
}
