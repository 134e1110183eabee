package model

import (
	"time"
)

// DirectMessage 1对1消息
// 身份三元组(sender/receiver/created_at)创建后不可变, 可变字段只有 body 和 read
// 删除是硬删除, 同时清理附件文件
type DirectMessage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SenderID   uint      `gorm:"index;not null" json:"sender_id"`
	ReceiverID uint      `gorm:"index;not null" json:"receiver_id"`
	Body       string    `gorm:"type:text" json:"body"`
	CreatedAt  time.Time `json:"created_at"`

	Read bool `gorm:"not null;default:false" json:"read"`

	// 附件: 两个字段要么都为空, 要么都非空
	AttachmentPath string `gorm:"type:varchar(255)" json:"attachment_path,omitempty"`
	AttachmentType string `gorm:"type:varchar(20)" json:"attachment_type,omitempty"`

	Edited   bool       `gorm:"not null;default:false" json:"edited"`
	EditedAt *time.Time `json:"edited_at,omitempty"`
}

func (m *DirectMessage) HasAttachment() bool {
	return m.AttachmentPath != ""
}
