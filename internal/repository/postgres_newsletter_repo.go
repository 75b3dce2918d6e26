package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/castletter/internal/model"
)

// PostgresNewsletterRepo はPostgreSQLを使用したニュースレターリポジトリ。
// 箇条書きの各セクションはJSONB配列として保存する。
type PostgresNewsletterRepo struct {
	db *sql.DB
}

// NewPostgresNewsletterRepo はPostgresNewsletterRepoを生成する。
func NewPostgresNewsletterRepo(db *sql.DB) *PostgresNewsletterRepo {
	return &PostgresNewsletterRepo{db: db}
}

// Create はニュースレターを作成する。エピソードごとに1件のみ。
// 同一エピソードへの2回目の作成はUNIQUE制約違反でエラーとなる。
func (r *PostgresNewsletterRepo) Create(ctx context.Context, nl *model.Newsletter) error {
	bulletPoints, err := json.Marshal(emptyIfNil(nl.BulletPoints))
	if err != nil {
		return fmt.Errorf("bullet_pointsのエンコードに失敗しました: %w", err)
	}
	keyTakeaways, err := json.Marshal(emptyIfNil(nl.KeyTakeaways))
	if err != nil {
		return fmt.Errorf("key_takeawaysのエンコードに失敗しました: %w", err)
	}
	actionItems, err := json.Marshal(emptyIfNil(nl.ActionItems))
	if err != nil {
		return fmt.Errorf("action_itemsのエンコードに失敗しました: %w", err)
	}
	quotes, err := json.Marshal(emptyIfNil(nl.Quotes))
	if err != nil {
		return fmt.Errorf("quotesのエンコードに失敗しました: %w", err)
	}
	speakers, err := json.Marshal(emptyIfNil(nl.Speakers))
	if err != nil {
		return fmt.Errorf("speakersのエンコードに失敗しました: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO episode_newsletters (id, episode_id, intro, bullet_points, key_takeaways,
		                                  action_items, quotes, speakers, reflection, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		nl.ID, nl.EpisodeID, nl.Intro, bulletPoints, keyTakeaways,
		actionItems, quotes, speakers, nullStringFromPtr(nl.Reflection), nl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ニュースレターの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByEpisodeID はエピソードIDでニュースレターを取得する。見つからない場合はnilを返す。
func (r *PostgresNewsletterRepo) FindByEpisodeID(ctx context.Context, episodeID string) (*model.Newsletter, error) {
	nl, err := scanNewsletter(r.db.QueryRowContext(ctx,
		`SELECT id, episode_id, intro, bullet_points, key_takeaways,
		        action_items, quotes, speakers, reflection, created_at
		 FROM episode_newsletters WHERE episode_id = $1`,
		episodeID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ニュースレターの取得に失敗しました: %w", err)
	}
	return nl, nil
}

// ListByEpisodeIDs は複数エピソードのニュースレターをまとめて取得する。
// 戻り値はエピソードIDをキーとするマップ。
func (r *PostgresNewsletterRepo) ListByEpisodeIDs(ctx context.Context, episodeIDs []string) (map[string]*model.Newsletter, error) {
	result := make(map[string]*model.Newsletter)
	if len(episodeIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, episode_id, intro, bullet_points, key_takeaways,
		        action_items, quotes, speakers, reflection, created_at
		 FROM episode_newsletters WHERE episode_id = ANY($1)`,
		pq.Array(episodeIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("ニュースレター一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		nl, err := scanNewsletter(rows)
		if err != nil {
			return nil, fmt.Errorf("ニュースレター行の読み取りに失敗しました: %w", err)
		}
		result[nl.EpisodeID] = nl
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ニュースレター一覧の走査に失敗しました: %w", err)
	}
	return result, nil
}

func scanNewsletter(row interface{ Scan(...interface{}) error }) (*model.Newsletter, error) {
	nl := &model.Newsletter{}
	var bulletPoints, keyTakeaways, actionItems, quotes, speakers []byte
	var reflection sql.NullString

	err := row.Scan(
		&nl.ID, &nl.EpisodeID, &nl.Intro, &bulletPoints, &keyTakeaways,
		&actionItems, &quotes, &speakers, &reflection, &nl.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(bulletPoints, &nl.BulletPoints); err != nil {
		return nil, fmt.Errorf("bullet_pointsのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(keyTakeaways, &nl.KeyTakeaways); err != nil {
		return nil, fmt.Errorf("key_takeawaysのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(actionItems, &nl.ActionItems); err != nil {
		return nil, fmt.Errorf("action_itemsのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(quotes, &nl.Quotes); err != nil {
		return nil, fmt.Errorf("quotesのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(speakers, &nl.Speakers); err != nil {
		return nil, fmt.Errorf("speakersのデコードに失敗しました: %w", err)
	}
	nl.Reflection = nullStringPtr(reflection)
	return nl, nil
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// compile-time interface check
var _ NewsletterRepository = (*PostgresNewsletterRepo)(nil)
