// Package whisper はOpenAI Whisper APIによる音声文字起こし機能を提供する。
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/castletter/internal/model"
)

// defaultEndpoint はWhisper文字起こしAPIのエンドポイント。
const defaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// transcriptionModel は使用する文字起こしモデル。
const transcriptionModel = "whisper-1"

// Transcriber は音声文字起こしのインターフェース。
type Transcriber interface {
	// Transcribe は音声データをテキストに変換する。
	// filenameは拡張子からフォーマットを推定するために使用される。
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Client はWhisper APIのクライアント。
// multipart/form-dataで音声を送信し、プレーンテキストの転写を受け取る。
type Client struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		logger:     logger,
		endpoint:   defaultEndpoint,
	}
}

// Transcribe は音声データをテキストに変換する。
// response_format=textを指定し、レスポンスボディをそのまま転写として返す。
// レート制限（429）とサーバーエラー（5xx）は一時的失敗として分類する。
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("multipartフォームの作成に失敗しました: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("音声データの書き込みに失敗しました: %w", err)
	}
	if err := writer.WriteField("model", transcriptionModel); err != nil {
		return "", fmt.Errorf("modelフィールドの書き込みに失敗しました: %w", err)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", fmt.Errorf("response_formatフィールドの書き込みに失敗しました: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("multipartフォームのクローズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Whisper APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("audio_bytes", len(audio)),
		)
		return "", model.NewTransientError("Whisper APIの呼び出しに失敗しました", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.NewTransientError("レスポンスボディの読み取りに失敗しました", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Whisper APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("audio_bytes", len(audio)),
		)
		errMsg := fmt.Sprintf("Whisper APIがステータス %d を返しました", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", model.NewTransientError(errMsg, nil)
		}
		return "", model.NewPermanentError(errMsg, nil)
	}

	return strings.TrimSpace(string(body)), nil
}

// compile-time interface check
var _ Transcriber = (*Client)(nil)
