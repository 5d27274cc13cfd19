package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/holdwatch/internal/model"
)

// PostgresAttemptRepo はPostgreSQLを使用した試行履歴リポジトリ。
type PostgresAttemptRepo struct {
	db *sql.DB
}

// NewPostgresAttemptRepo はPostgresAttemptRepoを生成する。
func NewPostgresAttemptRepo(db *sql.DB) *PostgresAttemptRepo {
	return &PostgresAttemptRepo{db: db}
}

// Record は試行を保存する。
func (r *PostgresAttemptRepo) Record(ctx context.Context, attempt *model.SignupAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO signup_attempts (id, event_id, event_name, group_name, start_time, place,
		                              method, path, result, http_status, reason, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		attempt.ID, attempt.EventID, attempt.EventName, attempt.GroupName,
		attempt.StartTime, attempt.Place, attempt.Method, attempt.Path,
		string(attempt.Result), attempt.HTTPStatus, attempt.Reason, attempt.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("サインアップ試行の保存に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は新しい順に最大limit件の試行を返す。
func (r *PostgresAttemptRepo) ListRecent(ctx context.Context, limit int) ([]*model.SignupAttempt, error) {
	if limit <= 0 {
		return []*model.SignupAttempt{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, event_name, group_name, start_time, place,
		        method, path, result, http_status, reason, attempted_at
		 FROM signup_attempts
		 ORDER BY attempted_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("サインアップ試行の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	attempts := make([]*model.SignupAttempt, 0, limit)
	for rows.Next() {
		a := &model.SignupAttempt{}
		var result string
		if err := rows.Scan(
			&a.ID, &a.EventID, &a.EventName, &a.GroupName, &a.StartTime, &a.Place,
			&a.Method, &a.Path, &result, &a.HTTPStatus, &a.Reason, &a.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("サインアップ試行のスキャンに失敗しました: %w", err)
		}
		a.Result = model.AttemptResult(result)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("サインアップ試行の走査に失敗しました: %w", err)
	}
	return attempts, nil
}
