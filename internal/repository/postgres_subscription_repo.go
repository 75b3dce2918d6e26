package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/castletter/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// FindByID は指定IDの購読を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	sub := &model.Subscription{}
	var description, coverImageURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, feed_url, title, description, cover_image_url, created_at, updated_at
		 FROM subscriptions WHERE id = $1`,
		id,
	).Scan(&sub.ID, &sub.UserID, &sub.FeedURL, &sub.Title, &description, &coverImageURL, &sub.CreatedAt, &sub.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読の取得に失敗しました: %w", err)
	}

	sub.Description = nullStringPtr(description)
	sub.CoverImageURL = nullStringPtr(coverImageURL)
	return sub, nil
}

// FindByUserAndFeedURL はユーザーIDとフィードURLで購読を検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByUserAndFeedURL(ctx context.Context, userID, feedURL string) (*model.Subscription, error) {
	sub := &model.Subscription{}
	var description, coverImageURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, feed_url, title, description, cover_image_url, created_at, updated_at
		 FROM subscriptions WHERE user_id = $1 AND feed_url = $2`,
		userID, feedURL,
	).Scan(&sub.ID, &sub.UserID, &sub.FeedURL, &sub.Title, &description, &coverImageURL, &sub.CreatedAt, &sub.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーとフィードURLによる購読の検索に失敗しました: %w", err)
	}

	sub.Description = nullStringPtr(description)
	sub.CoverImageURL = nullStringPtr(coverImageURL)
	return sub, nil
}

// CountByUserID はユーザーの購読数を返す。
func (r *PostgresSubscriptionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("購読数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は購読を作成する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, feed_url, title, description, cover_image_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.UserID, sub.FeedURL, sub.Title,
		nullStringFromPtr(sub.Description), nullStringFromPtr(sub.CoverImageURL),
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("購読の作成に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーの購読一覧を作成日時昇順で返す。
func (r *PostgresSubscriptionRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, feed_url, title, description, cover_image_url, created_at, updated_at
		 FROM subscriptions WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// ListAll は全購読を作成日時昇順で最大limit件返す。
func (r *PostgresSubscriptionRepo) ListAll(ctx context.Context, limit int) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, feed_url, title, description, cover_image_url, created_at, updated_at
		 FROM subscriptions ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("全購読の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// Delete は指定IDの購読を削除する。
// 関連するエピソードとニュースレターはCASCADE削除される。
func (r *PostgresSubscriptionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("購読が見つかりません: %s", id)
	}
	return nil
}

func scanSubscriptions(rows *sql.Rows) ([]*model.Subscription, error) {
	var subs []*model.Subscription
	for rows.Next() {
		sub := &model.Subscription{}
		var description, coverImageURL sql.NullString
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.FeedURL, &sub.Title, &description, &coverImageURL, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("購読行の読み取りに失敗しました: %w", err)
		}
		sub.Description = nullStringPtr(description)
		sub.CoverImageURL = nullStringPtr(coverImageURL)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

func nullStringFromPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// compile-time interface check
var _ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
