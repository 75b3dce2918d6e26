package newsletter

import "strings"

// Sections はLLM出力からパースされたニュースレターの構成要素。
type Sections struct {
	Intro        string
	BulletPoints []string
	KeyTakeaways []string
	ActionItems  []string
	Quotes       []string
	Speakers     []string
	Reflection   string
}

// セクション見出し（小文字）から格納先への対応。
// LLM出力の見出しの大文字小文字は揺れるため、小文字化して照合する。
const (
	sectionIntro      = "zusammenfassung"
	sectionBullets    = "hauptthemen"
	sectionTakeaways  = "key takeaways"
	sectionActions    = "action items"
	sectionQuotes     = "zitate"
	sectionSpeakers   = "sprecher"
	sectionReflection = "reflexion"
)

// ParseSections はLLMのMarkdown出力をセクションごとに分解する。
// 「## 見出し」行でセクションを切り替え、箇条書きセクションでは
// マーカー付き（-、*、•）の行だけを項目として収集する。
// マーカーのない前置き文は無視する。自由文セクションの複数行は
// 空白で連結する。見出しが1つも認識できず主要セクションが
// 空の場合は、出力全体をそのまま導入文として扱う。
func ParseSections(raw string) Sections {
	var s Sections
	var current string
	var introLines, reflectionLines []string

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		if heading, ok := parseHeading(trimmed); ok {
			current = heading
			continue
		}
		if trimmed == "" {
			continue
		}

		switch current {
		case sectionIntro:
			introLines = append(introLines, trimmed)
		case sectionReflection:
			reflectionLines = append(reflectionLines, trimmed)
		case sectionBullets:
			if item, ok := bulletItem(trimmed); ok {
				s.BulletPoints = append(s.BulletPoints, item)
			}
		case sectionTakeaways:
			if item, ok := bulletItem(trimmed); ok {
				s.KeyTakeaways = append(s.KeyTakeaways, item)
			}
		case sectionActions:
			if item, ok := bulletItem(trimmed); ok {
				s.ActionItems = append(s.ActionItems, item)
			}
		case sectionQuotes:
			if item, ok := bulletItem(trimmed); ok {
				s.Quotes = append(s.Quotes, item)
			}
		case sectionSpeakers:
			if item, ok := bulletItem(trimmed); ok {
				s.Speakers = append(s.Speakers, item)
			}
		}
	}

	s.Intro = strings.Join(introLines, " ")
	s.Reflection = strings.Join(reflectionLines, " ")

	// フォールバック: 構造を認識できなかった出力は丸ごと導入文にする
	if s.Intro == "" && len(s.BulletPoints) == 0 && len(s.KeyTakeaways) == 0 {
		s.Intro = strings.TrimSpace(raw)
	}
	return s
}

// parseHeading は「## 見出し」行を判定し、正規化した見出し名を返す。
func parseHeading(line string) (string, bool) {
	if !strings.HasPrefix(line, "## ") {
		return "", false
	}
	heading := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "## ")))
	heading = strings.TrimRight(heading, ":")
	switch heading {
	case sectionIntro, sectionBullets, sectionTakeaways, sectionActions, sectionQuotes, sectionSpeakers, sectionReflection:
		return heading, true
	}
	// 未知の見出しもセクション境界としては扱う
	return heading, true
}

// bulletItem は箇条書きマーカー付きの行から項目テキストを取り出す。
// マーカーのない行は項目として扱わない。
func bulletItem(line string) (string, bool) {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker)), true
		}
	}
	return "", false
}
