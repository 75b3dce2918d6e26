// Package model はドメインモデルを定義する。
package model

import "time"

// EpisodeStatus はエピソードのパイプライン処理状態を表す。
// ステータスは定義済みの遷移表（CanTransitionTo）に沿ってのみ前進し、
// 一時エラー時のリトライ用の巻き戻し以外で後退することはない。
type EpisodeStatus string

const (
	// StatusPendingTranscription は文字起こし待ちの初期状態。
	StatusPendingTranscription EpisodeStatus = "pending_transcription"
	// StatusTranscribing は文字起こし実行中（外部API呼び出し前にクレーム）。
	StatusTranscribing EpisodeStatus = "transcribing"
	// StatusTranscribed は文字起こし完了、ニュースレター生成待ち。
	StatusTranscribed EpisodeStatus = "transcribed"
	// StatusFailed は文字起こしの恒久的失敗（自動リトライなし）。
	StatusFailed EpisodeStatus = "failed"
	// StatusGeneratingNewsletter はニュースレター生成中。
	StatusGeneratingNewsletter EpisodeStatus = "generating_newsletter"
	// StatusNewsletterReady はニュースレター生成完了、配信待ち。
	StatusNewsletterReady EpisodeStatus = "newsletter_ready"
	// StatusNewsletterFailed はニュースレター生成の恒久的失敗。
	StatusNewsletterFailed EpisodeStatus = "newsletter_failed"
	// StatusNewsletterSent は配信済みの終端状態。以降一切変化しない。
	StatusNewsletterSent EpisodeStatus = "newsletter_sent"
)

// episodeTransitions はステータス遷移表。
// 自己ループ的な巻き戻し（transcribing → pending_transcription、
// generating_newsletter → transcribed）は一時エラー時のリトライ経路。
var episodeTransitions = map[EpisodeStatus][]EpisodeStatus{
	StatusPendingTranscription: {StatusTranscribing},
	StatusTranscribing:         {StatusTranscribed, StatusFailed, StatusPendingTranscription},
	StatusTranscribed:          {StatusGeneratingNewsletter},
	StatusGeneratingNewsletter: {StatusNewsletterReady, StatusNewsletterFailed, StatusTranscribed},
	StatusNewsletterReady:      {StatusNewsletterSent},
	StatusFailed:               {},
	StatusNewsletterFailed:     {},
	StatusNewsletterSent:       {},
}

// CanTransitionTo は現在のステータスからnextへの遷移が遷移表上で許可されているかを返す。
func (s EpisodeStatus) CanTransitionTo(next EpisodeStatus) bool {
	for _, allowed := range episodeTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal はこれ以上自動遷移しない終端状態かを返す。
func (s EpisodeStatus) IsTerminal() bool {
	return len(episodeTransitions[s]) == 0
}

// Valid は定義済みのステータス値かを返す。
func (s EpisodeStatus) Valid() bool {
	_, ok := episodeTransitions[s]
	return ok
}

// Episode はフィードから発見されたポッドキャストエピソードを表す。
// (subscription_id, guid) の組み合わせで一意。
type Episode struct {
	ID               string
	SubscriptionID   string
	GUID             string
	Title            string
	Description      string // サニタイズ済み
	AudioURL         string
	DurationSeconds  *int
	PublishedAt      time.Time
	Status           EpisodeStatus
	Transcript       *string
	ErrorMessage     *string
	NewsletterSentAt *time.Time
	CreatedAt        time.Time
}

// ParsedEpisode はフィードからパースされた未保存のエピソード候補を表す。
// GUIDはフィード側の値が空の場合、フィードURL・タイトル・公開日時から
// 合成されたものが設定される。
type ParsedEpisode struct {
	GUID            string
	Title           string
	Description     string // 未サニタイズ
	AudioURL        string
	DurationSeconds *int
	PublishedAt     *time.Time
}

// FeedCheckLog はフィードチェック1回分の監査レコードを表す。
// 追記専用であり、パイプラインから読み戻されることはない。
type FeedCheckLog struct {
	ID             string
	SubscriptionID string
	Status         FeedCheckStatus
	ErrorMessage   *string
	EpisodesFound  int
	CheckedAt      time.Time
}

// FeedCheckStatus はフィードチェックの結果種別を表す。
type FeedCheckStatus string

const (
	// FeedCheckSuccess はチェック成功。
	FeedCheckSuccess FeedCheckStatus = "success"
	// FeedCheckError はチェック失敗。
	FeedCheckError FeedCheckStatus = "error"
)
