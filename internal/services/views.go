package services

import (
	"context"
	"postbase/internal/logger"
	"postbase/internal/models"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ViewCounter 缓冲文章浏览量，后台按批写回数据库
type ViewCounter struct {
	db       *gorm.DB
	interval time.Duration

	mu      sync.Mutex
	pending map[uint]int
}

func NewViewCounter(db *gorm.DB, interval time.Duration) *ViewCounter {
	return &ViewCounter{
		db:       db,
		interval: interval,
		pending:  make(map[uint]int),
	}
}

// Record 记一次浏览，不阻塞
func (v *ViewCounter) Record(postID uint) {
	v.mu.Lock()
	v.pending[postID]++
	v.mu.Unlock()
}

// Pending 返回尚未写回的浏览数
func (v *ViewCounter) Pending(postID uint) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending[postID]
}

// Run 每个 interval 写回一次，ctx 结束时再写回剩余的
func (v *ViewCounter) Run(ctx context.Context) {
	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v.Flush(ctx)
		case <-ctx.Done():
			v.Flush(context.Background())
			return
		}
	}
}

// Flush 写回所有待处理的浏览数，返回更新的文章数
func (v *ViewCounter) Flush(ctx context.Context) int {
	v.mu.Lock()
	batch := v.pending
	v.pending = make(map[uint]int)
	v.mu.Unlock()

	updated := 0
	for postID, n := range batch {
		err := v.db.WithContext(ctx).Model(&models.Post{}).
			Where("id = ?", postID).
			UpdateColumn("views", gorm.Expr("views + ?", n)).Error
		if err != nil {
			logger.L().Warn("flush views failed", zap.Uint("post_id", postID), zap.Error(err))
			continue
		}
		updated++
	}
	return updated
}
