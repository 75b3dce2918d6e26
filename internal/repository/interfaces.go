// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/castletter/internal/model"
)

// SubscriptionRepository は購読データの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByID は指定IDの購読を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Subscription, error)

	// FindByUserAndFeedURL はユーザーIDとフィードURLで購読を検索する。見つからない場合はnilを返す。
	FindByUserAndFeedURL(ctx context.Context, userID, feedURL string) (*model.Subscription, error)

	// CountByUserID はユーザーの購読数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Create は購読を作成する。
	Create(ctx context.Context, subscription *model.Subscription) error

	// ListByUserID はユーザーの購読一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Subscription, error)

	// ListAll は全購読を作成日時昇順で最大limit件返す。
	// フィードポーリングの対象列挙に使用する。
	ListAll(ctx context.Context, limit int) ([]*model.Subscription, error)

	// Delete は指定IDの購読を削除する。
	// 関連するエピソードとニュースレターはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// EpisodeRepository はエピソードデータの永続化インターフェース。
// ステータス遷移はすべて条件付きUPDATE（期待する現ステータスを
// WHERE句に含める）で行い、多重実行時の二重処理を防ぐ。
type EpisodeRepository interface {
	// FindByID は指定IDのエピソードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Episode, error)

	// ListGUIDsBySubscription は購読に属する全エピソードのGUID集合を返す。
	ListGUIDsBySubscription(ctx context.Context, subscriptionID string) (map[string]bool, error)

	// InsertBatch は複数エピソードを同一トランザクションで挿入する。
	// 1件でも失敗した場合は全件ロールバックされる。
	InsertBatch(ctx context.Context, episodes []*model.Episode) error

	// ListByStatus は指定ステータスのエピソードをpublished_at昇順で最大limit件返す。
	ListByStatus(ctx context.Context, status model.EpisodeStatus, limit int) ([]*model.Episode, error)

	// ClaimStatus はステータスをfromからtoへ条件付きで遷移させる。
	// 現ステータスがfromでない場合は何も更新せずfalseを返す。
	ClaimStatus(ctx context.Context, id string, from, to model.EpisodeStatus) (bool, error)

	// UpdateStatus はステータスをfromからtoへ遷移させ、error_messageを設定する。
	// errorMessageがnilの場合はエラーメッセージをクリアする。
	UpdateStatus(ctx context.Context, id string, from, to model.EpisodeStatus, errorMessage *string) error

	// SaveTranscript は文字起こし結果を保存しステータスをtranscribedへ遷移させる。
	// errorNoteは部分転写などの注記（通常はnil）。
	SaveTranscript(ctx context.Context, id, transcript string, errorNote *string) error

	// ListNewsletterReadyBySubscriptions は指定購読群のnewsletter_ready
	// エピソードをpublished_at昇順で返す。
	ListNewsletterReadyBySubscriptions(ctx context.Context, subscriptionIDs []string) ([]*model.Episode, error)

	// MarkSent は指定エピソード群をnewsletter_sentへ遷移させ送信日時を記録する。
	// newsletter_ready状態の行のみ更新され、更新された行数を返す。
	MarkSent(ctx context.Context, ids []string, sentAt time.Time) (int, error)
}

// NewsletterRepository は生成済みニュースレターの永続化インターフェース。
type NewsletterRepository interface {
	// Create はニュースレターを作成する。エピソードごとに1件のみ。
	Create(ctx context.Context, newsletter *model.Newsletter) error

	// FindByEpisodeID はエピソードIDでニュースレターを取得する。見つからない場合はnilを返す。
	FindByEpisodeID(ctx context.Context, episodeID string) (*model.Newsletter, error)

	// ListByEpisodeIDs は複数エピソードのニュースレターをまとめて取得する。
	// 戻り値はエピソードIDをキーとするマップ。
	ListByEpisodeIDs(ctx context.Context, episodeIDs []string) (map[string]*model.Newsletter, error)
}

// UserSettingsRepository はユーザー設定の永続化インターフェース。
type UserSettingsRepository interface {
	// FindByUserID はユーザーIDで設定を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserSettings, error)

	// Upsert は設定を冪等にUPSERTする。
	Upsert(ctx context.Context, settings *model.UserSettings) error

	// ListByDeliveryHour は配信時刻が一致するユーザー設定を最大limit件返す。
	ListByDeliveryHour(ctx context.Context, hour int, limit int) ([]*model.UserSettings, error)
}

// FeedCheckLogRepository はフィードチェック監査ログの永続化インターフェース。
type FeedCheckLogRepository interface {
	// Create はチェック結果を追記する。
	Create(ctx context.Context, log *model.FeedCheckLog) error

	// ListBySubscription は購読のチェック履歴を新しい順に最大limit件返す。
	ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*model.FeedCheckLog, error)
}
