// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// FailureClass はパイプライン失敗の分類を表す。
// 恒久的失敗はリトライしても成功しないもの、一時的失敗は
// 次回の定期実行での自動リトライが期待できるもの。
type FailureClass int

const (
	// FailureTransient は一時的失敗（ネットワーク、レート制限、不明な例外）。
	// ステータスを試行前の値に巻き戻し、次回実行で自動リトライされる。
	FailureTransient FailureClass = iota
	// FailurePermanent は恒久的失敗（到達不能な音声、サイズ超過、空の結果など）。
	// ステータスは終端の失敗状態となり、自動リトライされない。
	FailurePermanent
)

// String はFailureClassの文字列表現を返す。
func (c FailureClass) String() string {
	switch c {
	case FailurePermanent:
		return "permanent"
	case FailureTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// StageError はパイプライン各ステージの失敗を分類付きで表す。
// 分類は型検査ではなくデータとして保持し、呼び出し側はClassを
// 網羅的に分岐する。ラップされたエラーはerrors.As/Isで辿れる。
type StageError struct {
	Class   FailureClass
	Message string // エピソード行に永続化されるユーザー向けメッセージ
	Err     error  // 元エラー（ない場合はnil）
}

// Error はerrorインターフェースを実装する。
func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap は元エラーを返す。
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewPermanentError は恒久的失敗を生成する。
func NewPermanentError(message string, err error) *StageError {
	return &StageError{Class: FailurePermanent, Message: message, Err: err}
}

// NewTransientError は一時的失敗を生成する。
func NewTransientError(message string, err error) *StageError {
	return &StageError{Class: FailureTransient, Message: message, Err: err}
}

// ClassifyError はエラーからFailureClassを取り出す。
// StageErrorでないエラーは一時的失敗として扱う（不明な例外は
// リトライで回復する可能性を残す）。
func ClassifyError(err error) FailureClass {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Class
	}
	return FailureTransient
}

// FailureMessage はエピソード行に永続化するメッセージを取り出す。
// StageErrorでない場合はエラー文字列をそのまま返す。
func FailureMessage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Message
	}
	return err.Error()
}

// APIError はHTTP APIの統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeSSRFBlocked           = "SSRF_BLOCKED"
	ErrCodeFetchFailed           = "FETCH_FAILED"
	ErrCodeParseFailed           = "PARSE_FAILED"
	ErrCodeSubscriptionLimit     = "SUBSCRIPTION_LIMIT"
	ErrCodeSubscriptionNotFound  = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeDuplicateSubscription = "DUPLICATE_SUBSCRIPTION"
	ErrCodeInvalidDeliveryHour   = "INVALID_DELIVERY_HOUR"
	ErrCodeInvalidEmail          = "INVALID_EMAIL"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "ポッドキャストフィードの解析に失敗しました。",
		Category: "feed",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewSubscriptionLimitError は購読上限エラーを生成する。
func NewSubscriptionLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionLimit,
		Message:  "購読数が上限（100件）に達しています。",
		Category: "feed",
		Action:   "不要な購読を解除してから、新しいポッドキャストを登録してください。",
	}
}

// NewDuplicateSubscriptionError は既に購読済みのフィードを再度登録しようとした場合のエラーを生成する。
func NewDuplicateSubscriptionError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSubscription,
		Message:  "このポッドキャストは既に購読しています。",
		Category: "feed",
		Action:   "購読一覧から該当ポッドキャストを確認してください。",
	}
}

// NewSubscriptionNotFoundError は購読が見つからない場合のエラーを生成する。
func NewSubscriptionNotFoundError(subscriptionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("指定された購読が見つかりません: %s", subscriptionID),
		Category: "feed",
		Action:   "購読IDを確認してください。",
	}
}

// NewInvalidDeliveryHourError は配信時刻が無効な場合のエラーを生成する。
func NewInvalidDeliveryHourError(hour int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDeliveryHour,
		Message:  fmt.Sprintf("無効な配信時刻です: %d", hour),
		Category: "validation",
		Action:   "配信時刻はUTCの0〜23時の範囲で指定してください。",
	}
}

// NewInvalidEmailError はメールアドレスが無効な場合のエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "無効なメールアドレスです。",
		Category: "validation",
		Action:   "正しいメールアドレス形式で入力してください。",
	}
}
