package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/castletter/internal/model"
)

// PostgresUserSettingsRepo はPostgreSQLを使用したユーザー設定リポジトリ。
type PostgresUserSettingsRepo struct {
	db *sql.DB
}

// NewPostgresUserSettingsRepo はPostgresUserSettingsRepoを生成する。
func NewPostgresUserSettingsRepo(db *sql.DB) *PostgresUserSettingsRepo {
	return &PostgresUserSettingsRepo{db: db}
}

// FindByUserID はユーザーIDで設定を取得する。見つからない場合はnilを返す。
func (r *PostgresUserSettingsRepo) FindByUserID(ctx context.Context, userID string) (*model.UserSettings, error) {
	settings := &model.UserSettings{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, newsletter_email, newsletter_delivery_hour, created_at, updated_at
		 FROM user_settings WHERE user_id = $1`,
		userID,
	).Scan(&settings.ID, &settings.UserID, &settings.NewsletterEmail,
		&settings.NewsletterDeliveryHour, &settings.CreatedAt, &settings.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー設定の取得に失敗しました: %w", err)
	}
	return settings, nil
}

// Upsert は設定を冪等にUPSERTする。
// user_idをキーに、既存行があればメールアドレスと配信時刻を更新する。
func (r *PostgresUserSettingsRepo) Upsert(ctx context.Context, settings *model.UserSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (id, user_id, newsletter_email, newsletter_delivery_hour, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		    newsletter_email = EXCLUDED.newsletter_email,
		    newsletter_delivery_hour = EXCLUDED.newsletter_delivery_hour,
		    updated_at = EXCLUDED.updated_at`,
		settings.ID, settings.UserID, settings.NewsletterEmail,
		settings.NewsletterDeliveryHour, settings.CreatedAt, settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザー設定のUPSERTに失敗しました: %w", err)
	}
	return nil
}

// ListByDeliveryHour は配信時刻が一致するユーザー設定を最大limit件返す。
func (r *PostgresUserSettingsRepo) ListByDeliveryHour(ctx context.Context, hour int, limit int) ([]*model.UserSettings, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, newsletter_email, newsletter_delivery_hour, created_at, updated_at
		 FROM user_settings WHERE newsletter_delivery_hour = $1
		 ORDER BY created_at ASC LIMIT $2`,
		hour, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("配信対象ユーザー設定の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var results []*model.UserSettings
	for rows.Next() {
		settings := &model.UserSettings{}
		if err := rows.Scan(&settings.ID, &settings.UserID, &settings.NewsletterEmail,
			&settings.NewsletterDeliveryHour, &settings.CreatedAt, &settings.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ユーザー設定行の読み取りに失敗しました: %w", err)
		}
		results = append(results, settings)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー設定一覧の走査に失敗しました: %w", err)
	}
	return results, nil
}

// compile-time interface check
var _ UserSettingsRepository = (*PostgresUserSettingsRepo)(nil)
