package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/castletter/internal/model"
)

// PostgresEpisodeRepoはEpisodeRepositoryインターフェースを満たすことを検証
func TestPostgresEpisodeRepo_ImplementsInterface(t *testing.T) {
	var _ EpisodeRepository = (*PostgresEpisodeRepo)(nil)
}

// NewPostgresEpisodeRepoが正しく初期化されることを検証
func TestNewPostgresEpisodeRepo_Initializes(t *testing.T) {
	repo := NewPostgresEpisodeRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Episodeモデルのフィールドが正しく構築されることを検証
func TestPostgresEpisodeRepo_EpisodeModel_Fields(t *testing.T) {
	now := time.Now()
	duration := 3723
	ep := &model.Episode{
		ID:              "ep-id-1",
		SubscriptionID:  "sub-id-1",
		GUID:            "guid-1",
		Title:           "Episode 1",
		AudioURL:        "https://example.com/ep1.mp3",
		DurationSeconds: &duration,
		PublishedAt:     now,
		Status:          model.StatusPendingTranscription,
		CreatedAt:       now,
	}

	if ep.SubscriptionID != "sub-id-1" {
		t.Errorf("ep.SubscriptionID = %q, want %q", ep.SubscriptionID, "sub-id-1")
	}
	if *ep.DurationSeconds != 3723 {
		t.Errorf("ep.DurationSeconds = %d, want %d", *ep.DurationSeconds, 3723)
	}
	if ep.Status != model.StatusPendingTranscription {
		t.Errorf("ep.Status = %q, want %q", ep.Status, model.StatusPendingTranscription)
	}
}

func TestNullStringHelpers(t *testing.T) {
	if got := nullStringFromPtr(nil); got.Valid {
		t.Error("nullStringFromPtr(nil) should be invalid")
	}

	s := "hello"
	ns := nullStringFromPtr(&s)
	if !ns.Valid || ns.String != "hello" {
		t.Errorf("nullStringFromPtr(&s) = %+v", ns)
	}

	if got := nullStringPtr(ns); got == nil || *got != "hello" {
		t.Errorf("nullStringPtr round trip failed: %v", got)
	}
}
