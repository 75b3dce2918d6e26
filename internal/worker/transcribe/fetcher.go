package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/castletter/internal/model"
	"github.com/hitoshi/castletter/internal/security"
)

// AudioFetcher はエピソード音声のダウンロードのインターフェース。
type AudioFetcher interface {
	// Fetch は音声データ全体とContent-Typeを返す。
	Fetch(ctx context.Context, audioURL string) (data []byte, contentType string, err error)
}

// HTTPAudioFetcher はSSRF防止機能付きクライアントで音声をダウンロードする。
// maxBytesを超えるファイルは恒久的失敗として拒否する。
type HTTPAudioFetcher struct {
	guard    security.SSRFGuardService
	timeout  time.Duration
	maxBytes int64
}

// NewHTTPAudioFetcher はHTTPAudioFetcherの新しいインスタンスを生成する。
func NewHTTPAudioFetcher(guard security.SSRFGuardService, timeout time.Duration, maxBytes int64) *HTTPAudioFetcher {
	return &HTTPAudioFetcher{
		guard:    guard,
		timeout:  timeout,
		maxBytes: maxBytes,
	}
}

// Fetch は音声データをダウンロードする。
// 404/410は恒久的失敗、429と5xxは一時的失敗として分類する。
// サイズ上限超過はリトライしても解決しないため恒久的失敗とする。
func (f *HTTPAudioFetcher) Fetch(ctx context.Context, audioURL string) ([]byte, string, error) {
	if err := f.guard.ValidateURL(audioURL); err != nil {
		return nil, "", model.NewPermanentError("音声URLの検証に失敗しました", err)
	}

	client := f.guard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, "", model.NewPermanentError("リクエスト作成に失敗しました", err)
	}
	req.Header.Set("User-Agent", "Castletter/1.0 Podcast Newsletter")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", model.NewTransientError("音声のダウンロードに失敗しました", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errMsg := fmt.Sprintf("音声サーバーがステータス %d を返しました", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, "", model.NewTransientError(errMsg, nil)
		}
		return nil, "", model.NewPermanentError(errMsg, nil)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, "", model.NewPermanentError(
			fmt.Sprintf("音声ファイルが大きすぎます (%dバイト、上限%dバイト)", resp.ContentLength, f.maxBytes), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", model.NewTransientError("音声データの読み取りに失敗しました", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", model.NewPermanentError(
			fmt.Sprintf("音声ファイルが大きすぎます (上限%dバイト)", f.maxBytes), nil)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// compile-time interface check
var _ AudioFetcher = (*HTTPAudioFetcher)(nil)
