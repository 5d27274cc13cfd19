package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/holdwatch/internal/model"
)

// defaultMemoryCapacity はメモリ上に保持する試行の最大件数。
const defaultMemoryCapacity = 100

// MemoryAttemptRepo はDATABASE_URL未設定時に使うメモリ上のリングバッファ。
// 容量を超えると古いものから破棄する。再起動で失われる。
type MemoryAttemptRepo struct {
	mu       sync.RWMutex
	buf      []model.SignupAttempt
	next     int
	full     bool
	capacity int
}

// NewMemoryAttemptRepo はMemoryAttemptRepoを生成する。
// capacityが0以下の場合はデフォルト値100を使用する。
func NewMemoryAttemptRepo(capacity int) *MemoryAttemptRepo {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryAttemptRepo{
		buf:      make([]model.SignupAttempt, capacity),
		capacity: capacity,
	}
}

// Record は試行を保存する。
func (r *MemoryAttemptRepo) Record(_ context.Context, attempt *model.SignupAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = *attempt
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// ListRecent は新しい順に最大limit件の試行のコピーを返す。
func (r *MemoryAttemptRepo) ListRecent(_ context.Context, limit int) ([]*model.SignupAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = r.capacity
	}
	if limit > size {
		limit = size
	}
	if limit < 0 {
		limit = 0
	}

	out := make([]*model.SignupAttempt, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + r.capacity) % r.capacity
		a := r.buf[idx]
		out = append(out, &a)
	}
	return out, nil
}
