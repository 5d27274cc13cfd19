// Package repository はサインアップ試行履歴の永続化を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/holdwatch/internal/model"
)

// AttemptRepository はサインアップ試行履歴の永続化インターフェース。
type AttemptRepository interface {
	// Record は試行を保存する。IDが空の場合は新しいUUIDを割り当てる。
	Record(ctx context.Context, attempt *model.SignupAttempt) error

	// ListRecent は新しい順に最大limit件の試行を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.SignupAttempt, error)
}
