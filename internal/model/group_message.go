package model

import (
	"time"
)

// GroupMessage 群消息
// 与 DirectMessage 的布尔已读位不同, 群消息的已读状态是读者集合(见 GroupMessageRead)
type GroupMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"index;not null" json:"group_id"`
	SenderID  uint      `gorm:"index;not null" json:"sender_id"`
	Body      string    `gorm:"type:text" json:"body"`
	CreatedAt time.Time `json:"created_at"`

	AttachmentPath string `gorm:"type:varchar(255)" json:"attachment_path,omitempty"`
	AttachmentType string `gorm:"type:varchar(20)" json:"attachment_type,omitempty"`

	Edited   bool       `gorm:"not null;default:false" json:"edited"`
	EditedAt *time.Time `json:"edited_at,omitempty"`
}

func (m *GroupMessage) HasAttachment() bool {
	return m.AttachmentPath != ""
}

// GroupMessageRead 群消息的读者集合, 一行代表一次确认
// 发送者的行在消息创建事务内写入, 因此集合恒包含发送者且只增不减
type GroupMessageRead struct {
	MessageID uint      `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}
