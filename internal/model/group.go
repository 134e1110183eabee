package model

import (
	"time"
)

// Group 群组实体, 本核心从不硬删除群组
type Group struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Description string `gorm:"type:varchar(255)" json:"description"`
	CreatorID   uint   `gorm:"not null;index" json:"creator_id"`
	Avatar      string `gorm:"type:varchar(255);default:'group.png'" json:"avatar"`

	// 每次有新消息时更新, 会话列表按它排序
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`
	Active         bool      `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
