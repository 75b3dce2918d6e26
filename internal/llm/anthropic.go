// Package llm はニュースレター生成用の補完サービスを提供する。
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hitoshi/castletter/internal/model"
)

// maxOutputTokens は1回の補完の出力トークン上限。
const maxOutputTokens = 4096

// Completer はテキスト補完のインターフェース。
type Completer interface {
	// Complete はsystemプロンプトとユーザーメッセージから補完テキストを生成する。
	Complete(ctx context.Context, system, userMessage string) (string, error)
}

// AnthropicCompleter はAnthropic Messages APIを使用したCompleterの実装。
type AnthropicCompleter struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicCompleter はAnthropicCompleterの新しいインスタンスを生成する。
// modelは設定から渡されるモデルIDをそのまま使用する。timeoutが0以下の場合は
// SDKのデフォルトタイムアウトを使用する。
func NewAnthropicCompleter(apiKey, model string, timeout time.Duration) *AnthropicCompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// Complete はsystemプロンプトとユーザーメッセージから補完テキストを生成する。
// レート制限（429）・過負荷（529）・サーバーエラー（5xx）は一時的失敗として
// 分類し、次回実行での自動リトライに委ねる。それ以外のAPIエラーは恒久的失敗。
func (c *AnthropicCompleter) Complete(ctx context.Context, system, userMessage string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxOutputTokens,
		System: []anthropic.TextBlockParam{{
			Text: system,
		}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
				return "", model.NewTransientError("補完APIのレート制限または一時エラー", err)
			}
			return "", model.NewPermanentError("補完APIがエラーを返しました", err)
		}
		return "", model.NewTransientError("補完APIの呼び出しに失敗しました", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		out.WriteString(block.Text)
	}
	return strings.TrimSpace(out.String()), nil
}

// compile-time interface check
var _ Completer = (*AnthropicCompleter)(nil)
