// Package poll は購読フィードの定期チェックと新規エピソードの取り込みを行う。
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/castletter/internal/feed"
	"github.com/hitoshi/castletter/internal/metrics"
	"github.com/hitoshi/castletter/internal/model"
	"github.com/hitoshi/castletter/internal/repository"
)

// FeedSource はフィードのフェッチとパースのインターフェース。
type FeedSource interface {
	FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error)
}

// Summary は1回のポーリング実行の集計結果。
type Summary struct {
	Examined      int `json:"examined"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
	EpisodesFound int `json:"episodes_found"`
}

// Poller は全購読のフィードをチェックし、新規エピソードを
// pending_transcription状態で保存するワーカー。
// 購読単位で失敗を隔離し、1購読の失敗が他の購読の処理を妨げない。
type Poller struct {
	subRepo            repository.SubscriptionRepository
	episodeRepo        repository.EpisodeRepository
	logRepo            repository.FeedCheckLogRepository
	source             FeedSource
	sanitizer          feed.Sanitizer
	metrics            metrics.Recorder
	logger             *slog.Logger
	maxSubscriptions   int
	maxConcurrency     int
	maxEpisodesPerFeed int
	recencyWindow      time.Duration
}

// NewPoller はPollerの新しいインスタンスを生成する。
// maxSubscriptions、maxConcurrency、maxEpisodesPerFeed、recencyWindowが
// 0以下の場合はデフォルト値（100、10、50、30日）を使用する。
func NewPoller(
	subRepo repository.SubscriptionRepository,
	episodeRepo repository.EpisodeRepository,
	logRepo repository.FeedCheckLogRepository,
	source FeedSource,
	sanitizer feed.Sanitizer,
	rec metrics.Recorder,
	logger *slog.Logger,
	maxSubscriptions, maxConcurrency, maxEpisodesPerFeed int,
	recencyWindow time.Duration,
) *Poller {
	if maxSubscriptions <= 0 {
		maxSubscriptions = 100
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if maxEpisodesPerFeed <= 0 {
		maxEpisodesPerFeed = 50
	}
	if recencyWindow <= 0 {
		recencyWindow = 30 * 24 * time.Hour
	}
	return &Poller{
		subRepo:            subRepo,
		episodeRepo:        episodeRepo,
		logRepo:            logRepo,
		source:             source,
		sanitizer:          sanitizer,
		metrics:            rec,
		logger:             logger,
		maxSubscriptions:   maxSubscriptions,
		maxConcurrency:     maxConcurrency,
		maxEpisodesPerFeed: maxEpisodesPerFeed,
		recencyWindow:      recencyWindow,
	}
}

// Start は指定間隔でポーリングを繰り返し実行する。
// コンテキストのキャンセルで停止する。起動直後に1回実行する。
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	p.logger.Info("フィードポーラーを開始します",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", p.maxConcurrency),
	)

	if _, err := p.RunOnce(ctx); err != nil {
		p.logger.Error("ポーリングに失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("フィードポーラーを停止します")
			return
		case <-ticker.C:
			if _, err := p.RunOnce(ctx); err != nil {
				p.logger.Error("ポーリングに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は全購読を1巡チェックする。
// 購読の列挙に失敗した場合のみエラーを返す。個別購読の失敗は
// 集計結果に反映され、処理は続行される。
func (p *Poller) RunOnce(ctx context.Context) (Summary, error) {
	subs, err := p.subRepo.ListAll(ctx, p.maxSubscriptions)
	if err != nil {
		return Summary{}, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}

	summary := Summary{Examined: len(subs)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.maxConcurrency)

	for _, sub := range subs {
		wg.Add(1)
		sem <- struct{}{}
		go func(sub *model.Subscription) {
			defer wg.Done()
			defer func() { <-sem }()

			found, err := p.checkSubscription(ctx, sub)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				p.metrics.RecordFeedCheck(false)
				p.logger.Warn("フィードチェックに失敗しました",
					slog.String("subscription_id", sub.ID),
					slog.String("feed_url", sub.FeedURL),
					slog.String("error", err.Error()),
				)
				return
			}
			summary.Succeeded++
			summary.EpisodesFound += found
			p.metrics.RecordFeedCheck(true)
		}(sub)
	}
	wg.Wait()

	p.logger.Info("ポーリングが完了しました",
		slog.Int("examined", summary.Examined),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("episodes_found", summary.EpisodesFound),
	)
	return summary, nil
}

// checkSubscription は1購読のフィードをチェックし、新規エピソードを保存する。
// 結果の成否にかかわらずチェック1回につき監査ログを1件だけ記録する。
func (p *Poller) checkSubscription(ctx context.Context, sub *model.Subscription) (int, error) {
	parsed, err := p.source.FetchAndParse(ctx, sub.FeedURL)
	if err != nil {
		p.writeCheckLog(ctx, sub.ID, model.FeedCheckError, err.Error(), 0)
		return 0, err
	}

	existing, err := p.episodeRepo.ListGUIDsBySubscription(ctx, sub.ID)
	if err != nil {
		err = fmt.Errorf("既存GUIDの取得に失敗しました: %w", err)
		p.writeCheckLog(ctx, sub.ID, model.FeedCheckError, err.Error(), 0)
		return 0, err
	}

	episodes := p.admitEpisodes(sub, feed.ExtractEpisodes(sub.FeedURL, parsed), existing)

	if len(episodes) > 0 {
		if err := p.episodeRepo.InsertBatch(ctx, episodes); err != nil {
			err = fmt.Errorf("エピソードの保存に失敗しました: %w", err)
			p.writeCheckLog(ctx, sub.ID, model.FeedCheckError, err.Error(), 0)
			return 0, err
		}
		p.metrics.RecordEpisodesDiscovered(len(episodes))
	}

	p.writeCheckLog(ctx, sub.ID, model.FeedCheckSuccess, "", len(episodes))
	return len(episodes), nil
}

// admitEpisodes はパース済み候補から保存対象を選別する。
// 公開日時が不明・未来・期間外のもの、既存GUIDと重複するものを
// 除外し、公開日時の新しい順を保ったまま上限件数で打ち切る。
func (p *Poller) admitEpisodes(sub *model.Subscription, candidates []model.ParsedEpisode, existing map[string]bool) []*model.Episode {
	now := time.Now().UTC()
	cutoff := now.Add(-p.recencyWindow)
	seen := make(map[string]bool)

	var episodes []*model.Episode
	for _, c := range candidates {
		if len(episodes) >= p.maxEpisodesPerFeed {
			break
		}
		if c.PublishedAt == nil {
			continue
		}
		if c.PublishedAt.After(now) || c.PublishedAt.Before(cutoff) {
			continue
		}
		if existing[c.GUID] || seen[c.GUID] {
			continue
		}
		seen[c.GUID] = true

		episodes = append(episodes, &model.Episode{
			ID:              uuid.New().String(),
			SubscriptionID:  sub.ID,
			GUID:            c.GUID,
			Title:           c.Title,
			Description:     p.sanitizer.SanitizeDescription(c.Description),
			AudioURL:        c.AudioURL,
			DurationSeconds: c.DurationSeconds,
			PublishedAt:     c.PublishedAt.UTC(),
			Status:          model.StatusPendingTranscription,
			CreatedAt:       now,
		})
	}
	return episodes
}

// writeCheckLog はフィードチェックの監査ログを1件記録する。
// ログの書き込み失敗はチェック自体の結果に影響させない。
func (p *Poller) writeCheckLog(ctx context.Context, subscriptionID string, status model.FeedCheckStatus, errorMessage string, found int) {
	entry := &model.FeedCheckLog{
		ID:             uuid.New().String(),
		SubscriptionID: subscriptionID,
		Status:         status,
		EpisodesFound:  found,
		CheckedAt:      time.Now().UTC(),
	}
	if errorMessage != "" {
		entry.ErrorMessage = &errorMessage
	}
	if err := p.logRepo.Create(ctx, entry); err != nil {
		p.logger.Warn("フィードチェックログの記録に失敗しました",
			slog.String("subscription_id", subscriptionID),
			slog.String("error", err.Error()),
		)
	}
}
