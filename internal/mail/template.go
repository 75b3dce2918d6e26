// Package mail はニュースレターダイジェストのレンダリングと送信を提供する。
package mail

import (
	"fmt"
	"html/template"
	"strings"
)

// DigestItem はダイジェストメール内の1エピソード分のコンテンツ。
type DigestItem struct {
	PodcastTitle string
	EpisodeTitle string
	Intro        string
	BulletPoints []string
	KeyTakeaways []string
	ActionItems  []string
	Quotes       []string
	Speakers     []string
	Reflection   *string
	AudioURL     string
}

// Subject はダイジェストメールの件名を生成する。
func Subject(episodeCount int) string {
	unit := "Episoden"
	if episodeCount == 1 {
		unit = "Episode"
	}
	return fmt.Sprintf("Deine neuen Podcast-Updates (%d %s)", episodeCount, unit)
}

// メールクライアント互換性のためインラインスタイルを使用する。
var colors = struct {
	Primary, Secondary, Accent, Muted, Bg, Border, TextMuted string
}{
	Primary:   "#042940",
	Secondary: "#005C53",
	Accent:    "#9FC131",
	Muted:     "#D6D58E",
	Bg:        "#ffffff",
	Border:    "#eeeeee",
	TextMuted: "#666666",
}

// htmlSection はHTMLテンプレートに渡す箇条書きセクション。
type htmlSection struct {
	Title string
	Color string
	Items []string
}

// htmlEpisode はHTMLテンプレートに渡す1エピソード分のビュー。
type htmlEpisode struct {
	PodcastTitle string
	EpisodeTitle string
	Intro        string
	Sections     []htmlSection
	Reflection   string
	AudioURL     string
}

type htmlDigest struct {
	UserEmail   string
	SettingsURL string
	Episodes    []htmlEpisode
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html lang="de">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Deine neuen Podcast-Updates</title>
</head>
<body style="margin: 0; padding: 0; background-color: #f9f9f9; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif;">
  <table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="max-width: 600px; margin: 0 auto; background-color: #ffffff;">
    <tr>
      <td style="padding: 40px 30px 20px; text-align: center; background-color: #042940;">
        <h1 style="margin: 0; color: #ffffff; font-size: 28px; font-weight: 700; letter-spacing: -0.5px;">Castletter</h1>
        <p style="margin: 8px 0 0; color: #D6D58E; font-size: 14px;">Deine täglichen Podcast-Highlights</p>
      </td>
    </tr>
    <tr>
      <td style="padding: 30px 30px 10px;">
        <p style="margin: 0; color: #042940; font-size: 16px; line-height: 1.6;">
          Hallo,<br>hier sind deine neuen Podcast-Zusammenfassungen:
        </p>
      </td>
    </tr>
{{range .Episodes}}    <tr>
      <td style="padding: 20px 30px;">
        <table role="presentation" cellpadding="0" cellspacing="0" width="100%" style="border: 1px solid #eeeeee; border-radius: 8px; overflow: hidden;">
          <tr>
            <td style="padding: 20px; background-color: #042940;">
              <p style="margin: 0 0 4px; color: #D6D58E; font-size: 12px; text-transform: uppercase; letter-spacing: 0.5px;">{{.PodcastTitle}}</p>
              <h2 style="margin: 0; color: #ffffff; font-size: 18px; font-weight: 600;">{{.EpisodeTitle}}</h2>
            </td>
          </tr>
          <tr>
            <td style="padding: 20px 20px 10px;">
              <p style="margin: 0; color: #042940; font-size: 15px; line-height: 1.6;">{{.Intro}}</p>
            </td>
          </tr>
{{range .Sections}}          <tr>
            <td style="padding: 10px 20px;">
              <h3 style="margin: 0 0 8px; color: {{.Color}}; font-size: 14px; text-transform: uppercase; letter-spacing: 0.5px;">{{.Title}}</h3>
              <ul style="margin: 0; padding-left: 20px;">
{{range .Items}}                <li style="margin-bottom: 6px; color: #042940; font-size: 14px; line-height: 1.5;">{{.}}</li>
{{end}}              </ul>
            </td>
          </tr>
{{end}}{{if .Reflection}}          <tr>
            <td style="padding: 10px 20px;">
              <h3 style="margin: 0 0 8px; color: #005C53; font-size: 14px; text-transform: uppercase; letter-spacing: 0.5px;">Einordnung</h3>
              <p style="margin: 0; color: #666666; font-size: 14px; line-height: 1.5; font-style: italic;">{{.Reflection}}</p>
            </td>
          </tr>
{{end}}          <tr>
            <td style="padding: 15px 20px 20px;">
              <a href="{{.AudioURL}}" style="display: inline-block; background-color: #005C53; color: #ffffff; padding: 10px 24px; text-decoration: none; border-radius: 6px; font-size: 14px; font-weight: 500;">
                &#9654; Episode anhören
              </a>
            </td>
          </tr>
        </table>
      </td>
    </tr>
{{end}}    <tr>
      <td style="padding: 30px; border-top: 1px solid #eeeeee;">
        <p style="margin: 0 0 10px; color: #666666; font-size: 12px; text-align: center;">
          Diese Email wurde an {{.UserEmail}} gesendet.
        </p>
        <p style="margin: 0; text-align: center;">
          <a href="{{.SettingsURL}}" style="color: #005C53; font-size: 12px; text-decoration: underline;">Einstellungen ändern</a>
        </p>
      </td>
    </tr>
  </table>
</body>
</html>`))

// RenderHTML はダイジェストのHTML本文をレンダリングする。
// 空のセクションは出力されない。すべての値はHTMLエスケープされる。
func RenderHTML(userEmail string, items []DigestItem, settingsURL string) (string, error) {
	digest := htmlDigest{
		UserEmail:   userEmail,
		SettingsURL: settingsURL,
	}
	for _, item := range items {
		ep := htmlEpisode{
			PodcastTitle: item.PodcastTitle,
			EpisodeTitle: item.EpisodeTitle,
			Intro:        item.Intro,
			AudioURL:     item.AudioURL,
		}
		for _, sec := range []htmlSection{
			{Title: "Hauptthemen", Color: colors.Secondary, Items: item.BulletPoints},
			{Title: "Wichtige Aussagen", Color: colors.Secondary, Items: item.KeyTakeaways},
			{Title: "Tipps & Methoden", Color: colors.Accent, Items: item.ActionItems},
			{Title: "Zitate & Begriffe", Color: colors.Accent, Items: item.Quotes},
			{Title: "Wer sagt was", Color: colors.Secondary, Items: item.Speakers},
		} {
			if len(sec.Items) > 0 {
				ep.Sections = append(ep.Sections, sec)
			}
		}
		if item.Reflection != nil && *item.Reflection != "" {
			ep.Reflection = *item.Reflection
		}
		digest.Episodes = append(digest.Episodes, ep)
	}

	var buf strings.Builder
	if err := digestTemplate.Execute(&buf, digest); err != nil {
		return "", fmt.Errorf("HTMLテンプレートのレンダリングに失敗しました: %w", err)
	}
	return buf.String(), nil
}

// RenderPlainText はダイジェストのプレーンテキスト版をレンダリングする。
// HTMLを表示できないメールクライアント向けのフォールバック。
func RenderPlainText(items []DigestItem, settingsURL string) string {
	var blocks []string
	for _, item := range items {
		var sections []string

		sections = append(sections,
			"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━",
			item.PodcastTitle,
			item.EpisodeTitle,
			"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━",
			"",
			item.Intro,
		)

		appendSection := func(label, marker string, entries []string) {
			if len(entries) == 0 {
				return
			}
			sections = append(sections, "", label+":")
			for _, e := range entries {
				sections = append(sections, "  "+marker+" "+e)
			}
		}

		appendSection("HAUPTTHEMEN", "•", item.BulletPoints)
		appendSection("WICHTIGE AUSSAGEN", "★", item.KeyTakeaways)
		appendSection("TIPPS & METHODEN", "→", item.ActionItems)
		appendSection("ZITATE & BEGRIFFE", "»", item.Quotes)
		appendSection("WER SAGT WAS", "•", item.Speakers)

		if item.Reflection != nil && *item.Reflection != "" {
			sections = append(sections, "", "EINORDNUNG: "+*item.Reflection)
		}

		sections = append(sections, "", "→ Episode anhören: "+item.AudioURL)
		blocks = append(blocks, strings.Join(sections, "\n"))
	}

	return "Deine neuen Podcast-Updates\n" +
		"===========================\n\n" +
		"Hallo,\nhier sind deine neuen Podcast-Zusammenfassungen:\n\n" +
		strings.Join(blocks, "\n\n") +
		"\n---\nEinstellungen ändern: " + settingsURL + "\n"
}
