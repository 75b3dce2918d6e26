package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/castletter/internal/model"
)

// PostgresFeedCheckLogRepo はPostgreSQLを使用したフィードチェックログリポジトリ。
type PostgresFeedCheckLogRepo struct {
	db *sql.DB
}

// NewPostgresFeedCheckLogRepo はPostgresFeedCheckLogRepoを生成する。
func NewPostgresFeedCheckLogRepo(db *sql.DB) *PostgresFeedCheckLogRepo {
	return &PostgresFeedCheckLogRepo{db: db}
}

// Create はチェック結果を追記する。
func (r *PostgresFeedCheckLogRepo) Create(ctx context.Context, log *model.FeedCheckLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO feed_check_logs (id, subscription_id, status, episodes_found, error_message, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		log.ID, log.SubscriptionID, string(log.Status), log.EpisodesFound,
		nullStringFromPtr(log.ErrorMessage), log.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードチェックログの作成に失敗しました: %w", err)
	}
	return nil
}

// ListBySubscription は購読のチェック履歴を新しい順に最大limit件返す。
func (r *PostgresFeedCheckLogRepo) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*model.FeedCheckLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, subscription_id, status, episodes_found, error_message, checked_at
		 FROM feed_check_logs WHERE subscription_id = $1
		 ORDER BY checked_at DESC LIMIT $2`,
		subscriptionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("フィードチェックログの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.FeedCheckLog
	for rows.Next() {
		log := &model.FeedCheckLog{}
		var status string
		var errorMessage sql.NullString
		if err := rows.Scan(&log.ID, &log.SubscriptionID, &status, &log.EpisodesFound,
			&errorMessage, &log.CheckedAt); err != nil {
			return nil, fmt.Errorf("フィードチェックログ行の読み取りに失敗しました: %w", err)
		}
		log.Status = model.FeedCheckStatus(status)
		log.ErrorMessage = nullStringPtr(errorMessage)
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードチェックログの走査に失敗しました: %w", err)
	}
	return logs, nil
}

// compile-time interface check
var _ FeedCheckLogRepository = (*PostgresFeedCheckLogRepo)(nil)
