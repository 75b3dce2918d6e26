// Package model はドメインモデルを定義する。
package model

import "time"

// Newsletter はエピソード1件から生成された構造化ニュースレターを表す。
// Newsletter Generatorがエピソードごとにちょうど1回作成し、以降不変。
type Newsletter struct {
	ID           string
	EpisodeID    string
	Intro        string
	BulletPoints []string // Hauptthemen
	KeyTakeaways []string // Wichtige Aussagen
	ActionItems  []string // Tipps & Methoden
	Quotes       []string // Zitate & Begriffe
	Speakers     []string // Wer sagt was
	Reflection   *string  // Einordnung（任意）
	CreatedAt    time.Time
}
