package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// SynthesizeGUID はGUIDを持たないエピソードの決定的な識別子を合成する。
// フィードURL・タイトル・公開日時文字列のみから導出される純粋関数であり、
// 同じフィードの同じエピソードに対して常に同じ値を返す。
func SynthesizeGUID(feedURL, title, pubDate string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", feedURL, title, pubDate)))
	return hex.EncodeToString(sum[:])
}

// ParseDuration はフィードの再生時間表記を秒数に変換する。
// "HH:MM:SS"、"MM:SS"、秒数のみ（"3600"）の3形式を受け付ける。
// 解釈できない表記はnilを返す（エラーにしない）。
func ParseDuration(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return nil
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil
		}
		total = total*60 + n
	}
	return &total
}
