// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はフィード由来のエピソード説明文をサニタイズし、
// メール本文やAPI応答に埋め込んでも安全なプレーンテキストに変換する。
// フィードの説明文はHTMLを含むことが多いが、ニュースレターのテンプレートは
// 自前のHTMLを組み立てるため、入力側ではタグをすべて除去する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// descriptionMaxChars はエピソード説明文の保存上限。
// フィードによっては説明文にエピソード全文を埋め込むものがあるため切り詰める。
const descriptionMaxChars = 1000

// ContentSanitizerService はフィード由来テキストのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeDescription はHTMLを含みうる説明文をプレーンテキストに変換する。
	// すべてのタグを除去し、HTMLエンティティをデコードし、連続する空白を
	// 1つにまとめ、最大1000文字に切り詰める。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeDescription(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはすべてのタグと属性を除去する。script、iframe、style、
// on*イベント属性を含むあらゆるHTMLが通過しない。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeDescription はHTMLを含みうる説明文をプレーンテキストに変換する。
func (s *contentSanitizer) SanitizeDescription(raw string) string {
	if raw == "" {
		return ""
	}

	stripped := s.policy.Sanitize(raw)
	// StrictPolicyはエンティティをエスケープした状態で返すためデコードする
	decoded := html.UnescapeString(stripped)
	collapsed := strings.Join(strings.Fields(decoded), " ")

	if utf8.RuneCountInString(collapsed) <= descriptionMaxChars {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:descriptionMaxChars])
}
