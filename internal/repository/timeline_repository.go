package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/fedtimeline/internal/model"
)

// TimelineRepository 离线时间线：按 (account, timeline) 保存最近拉取到的 status
type TimelineRepository interface {
	SaveBatch(ctx context.Context, accountID, timeline string, posts []*model.Post) error
	// ListPage 返回比 maxID 更旧的一页（maxID 为空时返回最新一页），新到旧
	ListPage(ctx context.Context, accountID, timeline, maxID string, limit int) ([]*model.Post, error)
	// UpdatePost 覆盖所有时间线中该 status 的快照，返回受影响行数
	UpdatePost(ctx context.Context, accountID string, post *model.Post) (int64, error)
	DeletePost(ctx context.Context, accountID, postID string) error
	Count(ctx context.Context, accountID, timeline string) (int64, error)
}

type timelineRepository struct{ db *gorm.DB }

func NewTimelineRepository(db *gorm.DB) TimelineRepository { return &timelineRepository{db: db} }

func (r *timelineRepository) SaveBatch(ctx context.Context, accountID, timeline string, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	entries := make([]*model.TimelineEntry, 0, len(posts))
	for _, p := range posts {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode post %s: %w", p.ID, err)
		}
		entries = append(entries, &model.TimelineEntry{
			ID:        uuid.New().String(),
			AccountID: accountID,
			Timeline:  timeline,
			PostID:    p.ID,
			Payload:   string(payload),
		})
	}
	// 同一条 status 再次拉取时只刷新快照
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "timeline"}, {Name: "post_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&entries).Error
}

func (r *timelineRepository) ListPage(ctx context.Context, accountID, timeline, maxID string, limit int) ([]*model.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.db.WithContext(ctx).
		Where("account_id = ? AND timeline = ?", accountID, timeline)
	if maxID != "" {
		// id 按数值比较：位数少的更旧，位数相同再按字典序
		q = q.Where("(LENGTH(post_id) < ? OR (LENGTH(post_id) = ? AND post_id < ?))", len(maxID), len(maxID), maxID)
	}
	var rows []*model.TimelineEntry
	err := q.Order("LENGTH(post_id) DESC").Order("post_id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return decodeEntries(rows)
}

func (r *timelineRepository) UpdatePost(ctx context.Context, accountID string, post *model.Post) (int64, error) {
	payload, err := json.Marshal(post)
	if err != nil {
		return 0, fmt.Errorf("encode post %s: %w", post.ID, err)
	}
	res := r.db.WithContext(ctx).Model(&model.TimelineEntry{}).
		Where("account_id = ? AND post_id = ?", accountID, post.ID).
		Update("payload", string(payload))
	return res.RowsAffected, res.Error
}

func (r *timelineRepository) DeletePost(ctx context.Context, accountID, postID string) error {
	return r.db.WithContext(ctx).Where("account_id = ? AND post_id = ?", accountID, postID).Delete(&model.TimelineEntry{}).Error
}

func (r *timelineRepository) Count(ctx context.Context, accountID, timeline string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.TimelineEntry{}).
		Where("account_id = ? AND timeline = ?", accountID, timeline).
		Count(&n).Error
	return n, err
}

func decodeEntries(rows []*model.TimelineEntry) ([]*model.Post, error) {
	out := make([]*model.Post, 0, len(rows))
	for _, e := range rows {
		p, err := model.DecodePost([]byte(e.Payload))
		if err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", e.PostID, err)
		}
		out = append(out, p)
	}
	return out, nil
}
