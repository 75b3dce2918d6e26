package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/castletter/internal/model"
	"github.com/hitoshi/castletter/internal/repository"
)

// maxSubscriptionsPerUser はユーザーあたりの購読上限。
const maxSubscriptionsPerUser = 100

// Sanitizer はフィード由来テキストのサニタイズのインターフェース。
type Sanitizer interface {
	SanitizeDescription(raw string) string
}

// Service はフィード検証と購読管理のサービス層。
// 検証（プレビュー） → 購読作成のフローを統括する。
type Service struct {
	subRepo   repository.SubscriptionRepository
	parser    *Parser
	sanitizer Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(subRepo repository.SubscriptionRepository, parser *Parser, sanitizer Sanitizer) *Service {
	return &Service{
		subRepo:   subRepo,
		parser:    parser,
		sanitizer: sanitizer,
	}
}

// Preview はフィードURLを検証し、プレビュー用メタデータを返す。
// フェッチとパースのみを行い、データベースには一切書き込まない。
func (s *Service) Preview(ctx context.Context, feedURL string) (*model.FeedPreview, error) {
	parsed, err := s.parser.FetchAndParse(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return buildPreview(feedURL, parsed, s.sanitizer), nil
}

// Subscribe はフィードを検証したうえでユーザーの購読を作成する。
// フロー: 購読上限チェック → 重複チェック → フェッチ・パース → 購読保存
func (s *Service) Subscribe(ctx context.Context, userID, feedURL string) (*model.Subscription, error) {
	count, err := s.subRepo.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("購読数の確認に失敗しました: %w", err)
	}
	if count >= maxSubscriptionsPerUser {
		return nil, model.NewSubscriptionLimitError()
	}

	existing, err := s.subRepo.FindByUserAndFeedURL(ctx, userID, feedURL)
	if err != nil {
		return nil, fmt.Errorf("購読の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateSubscriptionError()
	}

	preview, err := s.Preview(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &model.Subscription{
		ID:            uuid.New().String(),
		UserID:        userID,
		FeedURL:       feedURL,
		Title:         preview.Title,
		Description:   preview.Description,
		CoverImageURL: preview.CoverImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("購読の保存に失敗しました: %w", err)
	}
	return sub, nil
}

// Unsubscribe はユーザーの購読を削除する。
// 他ユーザーの購読IDを指定した場合はNotFoundとして扱う。
// 関連するエピソードとニュースレターはCASCADE削除される。
func (s *Service) Unsubscribe(ctx context.Context, userID, subscriptionID string) error {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	if sub == nil || sub.UserID != userID {
		return model.NewSubscriptionNotFoundError(subscriptionID)
	}
	return s.subRepo.Delete(ctx, subscriptionID)
}

// List はユーザーの購読一覧を返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return s.subRepo.ListByUserID(ctx, userID)
}

// buildPreview はパース済みフィードからプレビューを組み立てる。
// カバー画像はiTunes画像を優先し、なければチャンネル画像を使用する。
func buildPreview(feedURL string, parsed *gofeed.Feed, sanitizer Sanitizer) *model.FeedPreview {
	preview := &model.FeedPreview{
		Title:   parsed.Title,
		FeedURL: feedURL,
	}
	if preview.Title == "" {
		preview.Title = feedURL
	}

	if parsed.Description != "" {
		desc := sanitizer.SanitizeDescription(parsed.Description)
		if desc != "" {
			preview.Description = &desc
		}
	}

	if parsed.ITunesExt != nil && parsed.ITunesExt.Image != "" {
		img := parsed.ITunesExt.Image
		preview.CoverImageURL = &img
	} else if parsed.Image != nil && parsed.Image.URL != "" {
		img := parsed.Image.URL
		preview.CoverImageURL = &img
	}

	return preview
}
