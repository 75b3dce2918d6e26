package mail

import (
	"strings"
	"testing"
)

func sampleItem() DigestItem {
	reflection := "Eine nachdenkliche Einordnung."
	return DigestItem{
		PodcastTitle: "Testcast",
		EpisodeTitle: "Folge 12: Go & Postgres",
		Intro:        "In dieser Folge geht es um Datenbanken.",
		BulletPoints: []string{"Thema A", "Thema B"},
		KeyTakeaways: []string{"Aussage 1"},
		ActionItems:  []string{"Tipp 1"},
		Quotes:       []string{"Ein Zitat"},
		Speakers:     []string{"Host: sagt viel"},
		Reflection:   &reflection,
		AudioURL:     "https://cdn.example.com/ep12.mp3",
	}
}

func TestSubject(t *testing.T) {
	if got := Subject(1); got != "Deine neuen Podcast-Updates (1 Episode)" {
		t.Errorf("Subject(1) = %q", got)
	}
	if got := Subject(3); got != "Deine neuen Podcast-Updates (3 Episoden)" {
		t.Errorf("Subject(3) = %q", got)
	}
}

func TestRenderHTML_ContainsAllSections(t *testing.T) {
	html, err := RenderHTML("user@example.com", []DigestItem{sampleItem()}, "https://castletter.app/settings")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}

	for _, want := range []string{
		"Castletter",
		"Testcast",
		"Folge 12: Go &amp; Postgres",
		"In dieser Folge geht es um Datenbanken.",
		"Hauptthemen",
		"Wichtige Aussagen",
		"Tipps &amp; Methoden",
		"Zitate &amp; Begriffe",
		"Wer sagt was",
		"Einordnung",
		"Eine nachdenkliche Einordnung.",
		"Episode anhören",
		"https://cdn.example.com/ep12.mp3",
		"user@example.com",
		"https://castletter.app/settings",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML本文に %q が含まれていない", want)
		}
	}
}

func TestRenderHTML_OmitsEmptySections(t *testing.T) {
	item := sampleItem()
	item.ActionItems = nil
	item.Quotes = nil
	item.Reflection = nil

	html, err := RenderHTML("user@example.com", []DigestItem{item}, "https://castletter.app/settings")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}

	if strings.Contains(html, "Tipps &amp; Methoden") {
		t.Error("空のTipps & Methodenセクションが出力された")
	}
	if strings.Contains(html, "Einordnung") {
		t.Error("ReflectionなしでもEinordnungセクションが出力された")
	}
}

func TestRenderHTML_EscapesContent(t *testing.T) {
	item := sampleItem()
	item.EpisodeTitle = `<script>alert("xss")</script>`

	html, err := RenderHTML("user@example.com", []DigestItem{item}, "https://castletter.app/settings")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}

	if strings.Contains(html, "<script>") {
		t.Error("エピソードタイトルのHTMLがエスケープされていない")
	}
}

func TestRenderPlainText_ContainsAllSections(t *testing.T) {
	text := RenderPlainText([]DigestItem{sampleItem()}, "https://castletter.app/settings")

	for _, want := range []string{
		"Deine neuen Podcast-Updates",
		"Testcast",
		"Folge 12: Go & Postgres",
		"HAUPTTHEMEN:",
		"  • Thema A",
		"WICHTIGE AUSSAGEN:",
		"  ★ Aussage 1",
		"TIPPS & METHODEN:",
		"  → Tipp 1",
		"ZITATE & BEGRIFFE:",
		"WER SAGT WAS:",
		"EINORDNUNG: Eine nachdenkliche Einordnung.",
		"→ Episode anhören: https://cdn.example.com/ep12.mp3",
		"Einstellungen ändern: https://castletter.app/settings",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("プレーンテキストに %q が含まれていない", want)
		}
	}
}

func TestRenderPlainText_OmitsEmptySections(t *testing.T) {
	item := sampleItem()
	item.KeyTakeaways = nil
	item.Reflection = nil

	text := RenderPlainText([]DigestItem{item}, "https://castletter.app/settings")
	if strings.Contains(text, "WICHTIGE AUSSAGEN") {
		t.Error("空のWICHTIGE AUSSAGENセクションが出力された")
	}
	if strings.Contains(text, "EINORDNUNG") {
		t.Error("ReflectionなしでもEINORDNUNGが出力された")
	}
}
