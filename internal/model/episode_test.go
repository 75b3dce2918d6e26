package model

import "testing"

func TestEpisodeStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from EpisodeStatus
		to   EpisodeStatus
		want bool
	}{
		// 正常な前進遷移
		{"pending→transcribing", StatusPendingTranscription, StatusTranscribing, true},
		{"transcribing→transcribed", StatusTranscribing, StatusTranscribed, true},
		{"transcribing→failed", StatusTranscribing, StatusFailed, true},
		{"transcribed→generating", StatusTranscribed, StatusGeneratingNewsletter, true},
		{"generating→ready", StatusGeneratingNewsletter, StatusNewsletterReady, true},
		{"generating→failed", StatusGeneratingNewsletter, StatusNewsletterFailed, true},
		{"ready→sent", StatusNewsletterReady, StatusNewsletterSent, true},

		// 一時エラー時のリトライ用巻き戻し
		{"transcribing→pending（リトライ）", StatusTranscribing, StatusPendingTranscription, true},
		{"generating→transcribed（リトライ）", StatusGeneratingNewsletter, StatusTranscribed, true},

		// 段階の飛び越しは不可
		{"pending→transcribed", StatusPendingTranscription, StatusTranscribed, false},
		{"pending→ready", StatusPendingTranscription, StatusNewsletterReady, false},
		{"transcribed→ready", StatusTranscribed, StatusNewsletterReady, false},
		{"transcribed→sent", StatusTranscribed, StatusNewsletterSent, false},

		// 逆行は不可
		{"transcribed→pending", StatusTranscribed, StatusPendingTranscription, false},
		{"ready→transcribed", StatusNewsletterReady, StatusTranscribed, false},

		// 終端状態からは一切遷移しない
		{"sent→ready", StatusNewsletterSent, StatusNewsletterReady, false},
		{"sent→pending", StatusNewsletterSent, StatusPendingTranscription, false},
		{"failed→pending", StatusFailed, StatusPendingTranscription, false},
		{"newsletter_failed→transcribed", StatusNewsletterFailed, StatusTranscribed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s → %s: CanTransitionTo() = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestEpisodeStatus_IsTerminal(t *testing.T) {
	terminals := []EpisodeStatus{StatusFailed, StatusNewsletterFailed, StatusNewsletterSent}
	for _, s := range terminals {
		if !s.IsTerminal() {
			t.Errorf("%s は終端状態であるべき", s)
		}
	}

	nonTerminals := []EpisodeStatus{
		StatusPendingTranscription, StatusTranscribing, StatusTranscribed,
		StatusGeneratingNewsletter, StatusNewsletterReady,
	}
	for _, s := range nonTerminals {
		if s.IsTerminal() {
			t.Errorf("%s は終端状態であってはならない", s)
		}
	}
}

func TestEpisodeStatus_Valid(t *testing.T) {
	if !StatusTranscribed.Valid() {
		t.Error("transcribed は有効なステータスであるべき")
	}
	if EpisodeStatus("bogus").Valid() {
		t.Error("未定義のステータスは無効であるべき")
	}
}
