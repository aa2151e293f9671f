package model

import "time"

// TimelineEntry 离线时间线缓存项（按 account_id + timeline 切分）
type TimelineEntry struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	AccountID string `gorm:"type:varchar(255);not null;uniqueIndex:ux_entry_owner_post;index:idx_entry_owner"`
	Timeline  string `gorm:"type:varchar(64);not null;uniqueIndex:ux_entry_owner_post;index:idx_entry_owner"`
	PostID    string `gorm:"type:varchar(64);not null;uniqueIndex:ux_entry_owner_post;index:idx_entry_post"`
	// 复合唯一键，避免同一时间线重复缓存
	// ux_entry_owner_post = (account_id, timeline, post_id)
	Payload   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TimelineEntry) TableName() string { return "timeline_entries" }
