package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/castletter/internal/model"
)

// defaultEndpoint はResendメール送信APIのエンドポイント。
const defaultEndpoint = "https://api.resend.com/emails"

// Sender はダイジェストメール送信のインターフェース。
type Sender interface {
	// Send は1通のメールを送信する。
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// ResendClient はResend APIのクライアント。
type ResendClient struct {
	httpClient *http.Client
	apiKey     string
	from       string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewResendClient はResendClientの新しいインスタンスを生成する。
// fromは "Castletter <newsletter@castletter.app>" 形式の送信者。
func NewResendClient(apiKey, from string, timeout time.Duration, logger *slog.Logger) *ResendClient {
	return &ResendClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		from:       from,
		logger:     logger,
		endpoint:   defaultEndpoint,
	}
}

// sendRequest はResendの送信APIのリクエストボディ。
type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// Send は1通のメールを送信する。
// レート制限（429）とサーバーエラー（5xx）は一時的失敗として分類する。
func (c *ResendClient) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	payload, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
	})
	if err != nil {
		return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("メール送信APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return model.NewTransientError("メール送信APIの呼び出しに失敗しました", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	c.logger.Error("メール送信APIがエラーステータスを返しました",
		slog.Int("http_status", resp.StatusCode),
		slog.String("body", string(body)),
	)

	errMsg := fmt.Sprintf("メール送信APIがステータス %d を返しました", resp.StatusCode)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return model.NewTransientError(errMsg, nil)
	}
	return model.NewPermanentError(errMsg, nil)
}

// compile-time interface check
var _ Sender = (*ResendClient)(nil)
