package newsletter

import (
	"reflect"
	"testing"
)

func TestParseSections_MinimalOutput(t *testing.T) {
	s := ParseSections("## Zusammenfassung\nHello\n## Hauptthemen\n- A\n- B")

	if s.Intro != "Hello" {
		t.Errorf("Intro = %q, want %q", s.Intro, "Hello")
	}
	if !reflect.DeepEqual(s.BulletPoints, []string{"A", "B"}) {
		t.Errorf("BulletPoints = %v", s.BulletPoints)
	}
}

func TestParseSections_FullOutput(t *testing.T) {
	raw := `## Zusammenfassung
In dieser Episode geht es um verteilte Systeme.

## Hauptthemen
- Konsistenzmodelle
- Partitionierung

## Key Takeaways
- Konsistenz hat ihren Preis

## Action Items
- Eigene Latenzbudgets messen

## Zitate
- "Alles ist ein Trade-off"

## Sprecher
- Host: stellt kritische Fragen

## Reflexion
Besonders relevant für Backend-Entwickler.`

	s := ParseSections(raw)

	if s.Intro != "In dieser Episode geht es um verteilte Systeme." {
		t.Errorf("Intro = %q", s.Intro)
	}
	if !reflect.DeepEqual(s.BulletPoints, []string{"Konsistenzmodelle", "Partitionierung"}) {
		t.Errorf("BulletPoints = %v", s.BulletPoints)
	}
	if !reflect.DeepEqual(s.KeyTakeaways, []string{"Konsistenz hat ihren Preis"}) {
		t.Errorf("KeyTakeaways = %v", s.KeyTakeaways)
	}
	if !reflect.DeepEqual(s.ActionItems, []string{"Eigene Latenzbudgets messen"}) {
		t.Errorf("ActionItems = %v", s.ActionItems)
	}
	if !reflect.DeepEqual(s.Quotes, []string{`"Alles ist ein Trade-off"`}) {
		t.Errorf("Quotes = %v", s.Quotes)
	}
	if !reflect.DeepEqual(s.Speakers, []string{"Host: stellt kritische Fragen"}) {
		t.Errorf("Speakers = %v", s.Speakers)
	}
	if s.Reflection != "Besonders relevant für Backend-Entwickler." {
		t.Errorf("Reflection = %q", s.Reflection)
	}
}

func TestParseSections_CaseInsensitiveHeadings(t *testing.T) {
	s := ParseSections("## ZUSAMMENFASSUNG\nText\n## hauptthemen\n- Punkt")

	if s.Intro != "Text" {
		t.Errorf("Intro = %q", s.Intro)
	}
	if !reflect.DeepEqual(s.BulletPoints, []string{"Punkt"}) {
		t.Errorf("BulletPoints = %v", s.BulletPoints)
	}
}

func TestParseSections_AlternativeBulletMarkers(t *testing.T) {
	s := ParseSections("## Hauptthemen\n* Sternchen\n• Aufzählungszeichen")

	want := []string{"Sternchen", "Aufzählungszeichen"}
	if !reflect.DeepEqual(s.BulletPoints, want) {
		t.Errorf("BulletPoints = %v, want %v", s.BulletPoints, want)
	}
}

func TestParseSections_IgnoresUnmarkedLinesInBulletSections(t *testing.T) {
	raw := "## Hauptthemen\nHier die Themen im Überblick:\n- A\n- B"
	s := ParseSections(raw)

	// マーカーのない前置き文は項目にならない
	want := []string{"A", "B"}
	if !reflect.DeepEqual(s.BulletPoints, want) {
		t.Errorf("BulletPoints = %v, want %v", s.BulletPoints, want)
	}
}

func TestParseSections_JoinsFreeTextLinesWithSpaces(t *testing.T) {
	raw := "## Zusammenfassung\nErster Satz.\nZweiter Satz.\n## Reflexion\nFür Einsteiger.\nUnd Profis."
	s := ParseSections(raw)

	if s.Intro != "Erster Satz. Zweiter Satz." {
		t.Errorf("Intro = %q", s.Intro)
	}
	if s.Reflection != "Für Einsteiger. Und Profis." {
		t.Errorf("Reflection = %q", s.Reflection)
	}
}

func TestParseSections_NoHeadingsFallsBackToIntro(t *testing.T) {
	raw := "Die Episode behandelt mehrere Themen rund um Go."
	s := ParseSections(raw)

	if s.Intro != raw {
		t.Errorf("Intro = %q, want raw output", s.Intro)
	}
	if len(s.BulletPoints) != 0 || len(s.KeyTakeaways) != 0 {
		t.Errorf("フォールバック時にリストが埋まっている: %+v", s)
	}
}

func TestParseSections_IgnoresUnknownSections(t *testing.T) {
	s := ParseSections("## Zusammenfassung\nText\n## Werbung\n- Sponsor XY\n## Hauptthemen\n- Punkt")

	if !reflect.DeepEqual(s.BulletPoints, []string{"Punkt"}) {
		t.Errorf("BulletPoints = %v", s.BulletPoints)
	}
	for _, item := range s.BulletPoints {
		if item == "Sponsor XY" {
			t.Error("未知セクションの内容が取り込まれた")
		}
	}
}

func TestTruncateTranscript(t *testing.T) {
	if got := truncateTranscript("kurz", 10); got != "kurz" {
		t.Errorf("truncateTranscript() = %q", got)
	}

	got := truncateTranscript("ääääääääää", 5)
	want := "äääää" + truncationMarker
	if got != want {
		t.Errorf("truncateTranscript() = %q, want %q", got, want)
	}
}
