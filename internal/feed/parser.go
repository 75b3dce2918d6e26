// Package feed はポッドキャストフィードの取得・パース・検証を提供する。
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/castletter/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Parser はポッドキャストフィードのHTTPフェッチとパースを行う。
// SSRF検証付きクライアントでフェッチし、gofeedでパースする。
type Parser struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewParser はParserの新しいインスタンスを生成する。
func NewParser(ssrfGuard SSRFValidator, timeout time.Duration, maxBodySize int64) *Parser {
	return &Parser{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchAndParse はフィードをフェッチしてパースする。
// SSRF検証 → HTTPフェッチ（サイズ制限付き） → gofeedパースの順に実行する。
func (p *Parser) FetchAndParse(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	if err := p.ssrfGuard.ValidateURL(feedURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗しました: %w", err)
	}

	client := p.ssrfGuard.NewSafeClient(p.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Castletter/1.0 Podcast Newsletter")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードの取得に失敗しました: HTTPステータス %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}
	return parsed, nil
}

// ExtractEpisodes はパース済みフィードからエピソード候補を抽出する。
// 音声エンクロージャを持たない記事は除外する。GUIDが空の記事には
// フィードURL・タイトル・公開日時文字列から合成したGUIDを設定する。
func ExtractEpisodes(feedURL string, parsed *gofeed.Feed) []model.ParsedEpisode {
	episodes := make([]model.ParsedEpisode, 0, len(parsed.Items))

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		audioURL := audioEnclosureURL(item)
		if audioURL == "" {
			continue
		}

		ep := model.ParsedEpisode{
			GUID:        item.GUID,
			Title:       item.Title,
			Description: item.Description,
			AudioURL:    audioURL,
		}

		if ep.GUID == "" {
			ep.GUID = SynthesizeGUID(feedURL, item.Title, item.Published)
		}

		if item.ITunesExt != nil && item.ITunesExt.Duration != "" {
			ep.DurationSeconds = ParseDuration(item.ITunesExt.Duration)
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			ep.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			ep.PublishedAt = &t
		}

		episodes = append(episodes, ep)
	}

	return episodes
}

// audioEnclosureURL は記事の最初の音声エンクロージャのURLを返す。
// MIMEタイプが audio/ で始まるものを優先し、タイプ未指定の場合は
// URLの拡張子で音声ファイルかどうかを判定する。
func audioEnclosureURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc.URL
		}
	}
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" || enc.Type != "" {
			continue
		}
		if hasAudioExtension(enc.URL) {
			return enc.URL
		}
	}
	return ""
}

// audioExtensions は音声ファイルとして扱うURL拡張子。
var audioExtensions = []string{".mp3", ".m4a", ".wav", ".ogg", ".flac", ".aac", ".opus"}

func hasAudioExtension(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
