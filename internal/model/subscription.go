// Package model はドメインモデルを定義する。
package model

import "time"

// Subscription はユーザーとポッドキャストフィードの購読関係を表す。
// 購読UI（コア外）が作成・削除し、パイプラインからは読み取り専用。
type Subscription struct {
	ID            string
	UserID        string
	FeedURL       string
	Title         string
	Description   *string
	CoverImageURL *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserSettings はユーザーごとのニュースレター配信設定を表す。
// 配信時刻はUTCの時（0〜23）で保持する。設定UI（コア外）が更新し、
// Digest Dispatcherからは読み取り専用。
type UserSettings struct {
	ID                     string
	UserID                 string
	NewsletterEmail        string
	NewsletterDeliveryHour int // 0-23 (UTC)
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// FeedPreview はフィード検証エンドポイントが返すプレビューメタデータ。
// パイプライン状態を一切書き込まない。
type FeedPreview struct {
	Title         string
	Description   *string
	CoverImageURL *string
	FeedURL       string
}
