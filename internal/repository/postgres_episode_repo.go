package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/castletter/internal/model"
)

// PostgresEpisodeRepo はPostgreSQLを使用したエピソードリポジトリ。
type PostgresEpisodeRepo struct {
	db *sql.DB
}

// NewPostgresEpisodeRepo はPostgresEpisodeRepoを生成する。
func NewPostgresEpisodeRepo(db *sql.DB) *PostgresEpisodeRepo {
	return &PostgresEpisodeRepo{db: db}
}

const episodeColumns = `id, subscription_id, guid, title, description, audio_url,
	        duration_seconds, published_at, status, transcript, error_message,
	        newsletter_sent_at, created_at`

func scanEpisode(row interface{ Scan(...interface{}) error }) (*model.Episode, error) {
	ep := &model.Episode{}
	var durationSeconds sql.NullInt64
	var transcript, errorMessage sql.NullString
	var newsletterSentAt sql.NullTime
	var status string

	err := row.Scan(
		&ep.ID, &ep.SubscriptionID, &ep.GUID, &ep.Title, &ep.Description, &ep.AudioURL,
		&durationSeconds, &ep.PublishedAt, &status, &transcript, &errorMessage,
		&newsletterSentAt, &ep.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ep.Status = model.EpisodeStatus(status)
	if durationSeconds.Valid {
		d := int(durationSeconds.Int64)
		ep.DurationSeconds = &d
	}
	ep.Transcript = nullStringPtr(transcript)
	ep.ErrorMessage = nullStringPtr(errorMessage)
	if newsletterSentAt.Valid {
		ep.NewsletterSentAt = &newsletterSentAt.Time
	}
	return ep, nil
}

// FindByID は指定IDのエピソードを取得する。見つからない場合はnilを返す。
func (r *PostgresEpisodeRepo) FindByID(ctx context.Context, id string) (*model.Episode, error) {
	ep, err := scanEpisode(r.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エピソードの取得に失敗しました: %w", err)
	}
	return ep, nil
}

// ListGUIDsBySubscription は購読に属する全エピソードのGUID集合を返す。
func (r *PostgresEpisodeRepo) ListGUIDsBySubscription(ctx context.Context, subscriptionID string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT guid FROM episodes WHERE subscription_id = $1`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("既存GUID一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	guids := make(map[string]bool)
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("GUID行の読み取りに失敗しました: %w", err)
		}
		guids[guid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GUID一覧の走査に失敗しました: %w", err)
	}
	return guids, nil
}

// InsertBatch は複数エピソードを同一トランザクションで挿入する。
// 1件でも失敗した場合は全件ロールバックされる。
func (r *PostgresEpisodeRepo) InsertBatch(ctx context.Context, episodes []*model.Episode) error {
	if len(episodes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for _, ep := range episodes {
		var durationSeconds sql.NullInt64
		if ep.DurationSeconds != nil {
			durationSeconds = sql.NullInt64{Int64: int64(*ep.DurationSeconds), Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO episodes (id, subscription_id, guid, title, description, audio_url,
			                       duration_seconds, published_at, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			ep.ID, ep.SubscriptionID, ep.GUID, ep.Title, ep.Description, ep.AudioURL,
			durationSeconds, ep.PublishedAt, string(ep.Status), ep.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("エピソードの挿入に失敗しました (guid=%s): %w", ep.GUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("エピソード挿入のコミットに失敗しました: %w", err)
	}
	return nil
}

// ListByStatus は指定ステータスのエピソードをpublished_at昇順で最大limit件返す。
func (r *PostgresEpisodeRepo) ListByStatus(ctx context.Context, status model.EpisodeStatus, limit int) ([]*model.Episode, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes
		 WHERE status = $1 ORDER BY published_at ASC LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ステータスによるエピソード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanEpisodes(rows)
}

// ClaimStatus はステータスをfromからtoへ条件付きで遷移させる。
// 現ステータスがfromでない場合は何も更新せずfalseを返す。
// WHERE句の条件付き更新により、多重実行時に同一エピソードを
// 複数のワーカーがクレームすることを防ぐ。
func (r *PostgresEpisodeRepo) ClaimStatus(ctx context.Context, id string, from, to model.EpisodeStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET status = $3 WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return false, fmt.Errorf("エピソードのクレームに失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("クレーム結果の取得に失敗しました: %w", err)
	}
	return rowsAffected == 1, nil
}

// UpdateStatus はステータスをfromからtoへ遷移させ、error_messageを設定する。
// errorMessageがnilの場合はエラーメッセージをクリアする。
func (r *PostgresEpisodeRepo) UpdateStatus(ctx context.Context, id string, from, to model.EpisodeStatus, errorMessage *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET status = $3, error_message = $4
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), nullStringFromPtr(errorMessage),
	)
	if err != nil {
		return fmt.Errorf("エピソードステータスの更新に失敗しました: %w", err)
	}
	return nil
}

// SaveTranscript は文字起こし結果を保存しステータスをtranscribedへ遷移させる。
// transcribing状態の行のみ更新される。
func (r *PostgresEpisodeRepo) SaveTranscript(ctx context.Context, id, transcript string, errorNote *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET status = $2, transcript = $3, error_message = $4
		 WHERE id = $1 AND status = $5`,
		id, string(model.StatusTranscribed), transcript,
		nullStringFromPtr(errorNote), string(model.StatusTranscribing),
	)
	if err != nil {
		return fmt.Errorf("文字起こし結果の保存に失敗しました: %w", err)
	}
	return nil
}

// ListNewsletterReadyBySubscriptions は指定購読群のnewsletter_ready
// エピソードをpublished_at昇順で返す。
func (r *PostgresEpisodeRepo) ListNewsletterReadyBySubscriptions(ctx context.Context, subscriptionIDs []string) ([]*model.Episode, error) {
	if len(subscriptionIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes
		 WHERE subscription_id = ANY($1) AND status = $2
		 ORDER BY published_at ASC`,
		pq.Array(subscriptionIDs), string(model.StatusNewsletterReady),
	)
	if err != nil {
		return nil, fmt.Errorf("配信待ちエピソード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanEpisodes(rows)
}

// MarkSent は指定エピソード群をnewsletter_sentへ遷移させ送信日時を記録する。
// newsletter_ready状態の行のみ更新され、更新された行数を返す。
func (r *PostgresEpisodeRepo) MarkSent(ctx context.Context, ids []string, sentAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET status = $2, newsletter_sent_at = $3
		 WHERE id = ANY($1) AND status = $4`,
		pq.Array(ids), string(model.StatusNewsletterSent), sentAt,
		string(model.StatusNewsletterReady),
	)
	if err != nil {
		return 0, fmt.Errorf("配信済みマークに失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("配信済みマーク結果の取得に失敗しました: %w", err)
	}
	return int(rowsAffected), nil
}

func scanEpisodes(rows *sql.Rows) ([]*model.Episode, error) {
	var episodes []*model.Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("エピソード行の読み取りに失敗しました: %w", err)
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エピソード一覧の走査に失敗しました: %w", err)
	}
	return episodes, nil
}

// compile-time interface check
var _ EpisodeRepository = (*PostgresEpisodeRepo)(nil)
