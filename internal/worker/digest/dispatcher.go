// Package digest は配信時刻を迎えたユーザーへのダイジェストメール送信を行う。
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/castletter/internal/mail"
	"github.com/hitoshi/castletter/internal/metrics"
	"github.com/hitoshi/castletter/internal/model"
	"github.com/hitoshi/castletter/internal/repository"
)

// Summary は1回の配信実行の集計結果。
type Summary struct {
	Examined     int `json:"examined"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	EpisodesSent int `json:"episodes_sent"`
}

// Dispatcher は現在のUTC時刻と配信設定が一致するユーザーに
// newsletter_readyのエピソードをまとめて送信するワーカー。
// ユーザー単位で失敗を隔離し、1ユーザーの送信失敗が他のユーザーの
// 配信を妨げない。
type Dispatcher struct {
	settingsRepo   repository.UserSettingsRepository
	subRepo        repository.SubscriptionRepository
	episodeRepo    repository.EpisodeRepository
	newsletterRepo repository.NewsletterRepository
	sender         mail.Sender
	metrics        metrics.Recorder
	logger         *slog.Logger
	maxUsers       int
	settingsURL    string
	now            func() time.Time // テスト用に差し替え可能
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// maxUsersが0以下の場合は100を使用する。settingsURLは
// メールフッターの設定変更リンクに使用される。
func NewDispatcher(
	settingsRepo repository.UserSettingsRepository,
	subRepo repository.SubscriptionRepository,
	episodeRepo repository.EpisodeRepository,
	newsletterRepo repository.NewsletterRepository,
	sender mail.Sender,
	rec metrics.Recorder,
	logger *slog.Logger,
	maxUsers int,
	settingsURL string,
) *Dispatcher {
	if maxUsers <= 0 {
		maxUsers = 100
	}
	return &Dispatcher{
		settingsRepo:   settingsRepo,
		subRepo:        subRepo,
		episodeRepo:    episodeRepo,
		newsletterRepo: newsletterRepo,
		sender:         sender,
		metrics:        rec,
		logger:         logger,
		maxUsers:       maxUsers,
		settingsURL:    settingsURL,
		now:            time.Now,
	}
}

// Start は指定間隔でダイジェスト配信を繰り返し実行する。
// コンテキストのキャンセルで停止する。起動直後に1回実行する。
func (d *Dispatcher) Start(ctx context.Context, interval time.Duration) {
	d.logger.Info("ダイジェスト配信ワーカーを開始します",
		slog.Duration("interval", interval),
	)

	if _, err := d.RunOnce(ctx); err != nil {
		d.logger.Error("ダイジェスト配信に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("ダイジェスト配信ワーカーを停止します")
			return
		case <-ticker.C:
			if _, err := d.RunOnce(ctx); err != nil {
				d.logger.Error("ダイジェスト配信に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は現在のUTC時刻が配信時刻と一致するユーザーを処理する。
// 対象ユーザーの列挙に失敗した場合のみエラーを返す。
func (d *Dispatcher) RunOnce(ctx context.Context) (Summary, error) {
	hour := d.now().UTC().Hour()
	users, err := d.settingsRepo.ListByDeliveryHour(ctx, hour, d.maxUsers)
	if err != nil {
		return Summary{}, fmt.Errorf("配信対象ユーザーの取得に失敗しました: %w", err)
	}

	summary := Summary{Examined: len(users)}
	for _, user := range users {
		episodes, err := d.dispatchToUser(ctx, user)
		if err != nil {
			summary.Failed++
			d.metrics.RecordDigestFailure()
			d.logger.Warn("ユーザーへの配信に失敗しました",
				slog.String("user_id", user.UserID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if episodes == 0 {
			summary.Skipped++
			continue
		}
		summary.Sent++
		summary.EpisodesSent += episodes
		d.metrics.RecordDigestSent(episodes)
	}

	if summary.Examined > 0 {
		d.logger.Info("ダイジェスト配信が完了しました",
			slog.Int("hour", hour),
			slog.Int("examined", summary.Examined),
			slog.Int("sent", summary.Sent),
			slog.Int("failed", summary.Failed),
			slog.Int("skipped", summary.Skipped),
		)
	}
	return summary, nil
}

// dispatchToUser は1ユーザーのダイジェストを組み立てて送信する。
// 配信対象のエピソードがない場合は(0, nil)を返し、メールは送信しない。
// 送信成功後にMarkSentで一括遷移させるため、同一エピソードが
// 次回実行で再送されることはない。
func (d *Dispatcher) dispatchToUser(ctx context.Context, user *model.UserSettings) (int, error) {
	subs, err := d.subRepo.ListByUserID(ctx, user.UserID)
	if err != nil {
		return 0, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	subIDs := make([]string, 0, len(subs))
	subTitles := make(map[string]string, len(subs))
	for _, sub := range subs {
		subIDs = append(subIDs, sub.ID)
		subTitles[sub.ID] = sub.Title
	}

	episodes, err := d.episodeRepo.ListNewsletterReadyBySubscriptions(ctx, subIDs)
	if err != nil {
		return 0, fmt.Errorf("配信対象エピソードの取得に失敗しました: %w", err)
	}
	if len(episodes) == 0 {
		return 0, nil
	}

	episodeIDs := make([]string, 0, len(episodes))
	for _, ep := range episodes {
		episodeIDs = append(episodeIDs, ep.ID)
	}
	newsletters, err := d.newsletterRepo.ListByEpisodeIDs(ctx, episodeIDs)
	if err != nil {
		return 0, fmt.Errorf("ニュースレターの取得に失敗しました: %w", err)
	}

	var items []mail.DigestItem
	var sentIDs []string
	for _, ep := range episodes {
		nl, ok := newsletters[ep.ID]
		if !ok {
			// readyなのにニュースレター行がない場合はスキップして次回に持ち越す
			d.logger.Warn("ニュースレター行が見つかりません", slog.String("episode_id", ep.ID))
			continue
		}
		items = append(items, mail.DigestItem{
			PodcastTitle: subTitles[ep.SubscriptionID],
			EpisodeTitle: ep.Title,
			Intro:        nl.Intro,
			BulletPoints: nl.BulletPoints,
			KeyTakeaways: nl.KeyTakeaways,
			ActionItems:  nl.ActionItems,
			Quotes:       nl.Quotes,
			Speakers:     nl.Speakers,
			Reflection:   nl.Reflection,
			AudioURL:     ep.AudioURL,
		})
		sentIDs = append(sentIDs, ep.ID)
	}
	if len(items) == 0 {
		return 0, nil
	}

	htmlBody, err := mail.RenderHTML(user.NewsletterEmail, items, d.settingsURL)
	if err != nil {
		return 0, fmt.Errorf("メール本文のレンダリングに失敗しました: %w", err)
	}
	textBody := mail.RenderPlainText(items, d.settingsURL)

	if err := d.sender.Send(ctx, user.NewsletterEmail, mail.Subject(len(items)), htmlBody, textBody); err != nil {
		return 0, fmt.Errorf("メール送信に失敗しました: %w", err)
	}

	updated, err := d.episodeRepo.MarkSent(ctx, sentIDs, d.now().UTC())
	if err != nil {
		// メールは送信済み。遷移失敗分は次回再送の可能性があるためエラーとして扱う。
		return 0, fmt.Errorf("送信済みステータスの記録に失敗しました: %w", err)
	}
	if updated != len(sentIDs) {
		d.logger.Warn("一部のエピソードが送信済みに遷移できませんでした",
			slog.String("user_id", user.UserID),
			slog.Int("expected", len(sentIDs)),
			slog.Int("updated", updated),
		)
	}

	return len(items), nil
}
