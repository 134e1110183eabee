package event

import (
	"encoding/json"
	"time"
)

// 客户端与服务端之间统一的JSON事件信封: {"event": "...", "data": {...}}

// 客户端 -> 服务端
const (
	EventPrivateMessage   = "private_message"
	EventGroupMessage     = "group_message"
	EventTyping           = "typing"
	EventStopTyping       = "stop_typing"
	EventMessageRead      = "message_read"
	EventGroupMessageRead = "group_message_read"
)

// 服务端 -> 客户端
const (
	EventNewMessage              = "new_message"
	EventMessageSent             = "message_sent"
	EventNewGroupMessage         = "new_group_message"
	EventGroupMessageSent        = "group_message_sent"
	EventMessageError            = "message_error"
	EventUserTyping              = "user_typing"
	EventUserStopTyping          = "user_stop_typing"
	EventMessageReadReceipt      = "message_read_receipt"
	EventGroupMessageReadReceipt = "group_message_read_receipt"
	EventMessageEdited           = "message_edited"
	EventMessageDeleted          = "message_deleted"
	EventGroupMessageEdited      = "group_message_edited"
	EventGroupMessageDeleted     = "group_message_deleted"
	EventAddedToGroup            = "added_to_group"
	EventRemovedFromGroup        = "removed_from_group"
	EventGroupMemberAdded        = "group_member_added"
	EventGroupMemberRemoved      = "group_member_removed"
)

type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type ServerEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func (e *ServerEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// --- 客户端负载 ---

type PrivateMessageIn struct {
	ReceiverID     uint   `json:"receiver_id"`
	Body           string `json:"body"`
	Attachment     string `json:"attachment,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`
}

type GroupMessageIn struct {
	GroupID        uint   `json:"group_id"`
	Body           string `json:"body"`
	Attachment     string `json:"attachment,omitempty"`
	AttachmentType string `json:"attachment_type,omitempty"`
}

type TypingIn struct {
	ReceiverID uint `json:"receiver_id"`
}

type MessageReadIn struct {
	MessageID uint `json:"message_id"`
}

// --- 服务端负载 ---

// SenderInfo 读取时从身份投影填充, 不做存储反范式化
type SenderInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type DirectMessageView struct {
	ID             uint       `json:"id"`
	SenderID       uint       `json:"sender_id"`
	ReceiverID     uint       `json:"receiver_id"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
	Read           bool       `json:"read"`
	AttachmentPath string     `json:"attachment_path,omitempty"`
	AttachmentType string     `json:"attachment_type,omitempty"`
	Edited         bool       `json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Sender         SenderInfo `json:"sender"`
}

type GroupMessageView struct {
	ID             uint       `json:"id"`
	GroupID        uint       `json:"group_id"`
	SenderID       uint       `json:"sender_id"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadBy         []uint     `json:"read_by"`
	AttachmentPath string     `json:"attachment_path,omitempty"`
	AttachmentType string     `json:"attachment_type,omitempty"`
	Edited         bool       `json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Sender         SenderInfo `json:"sender"`
}

type ReadReceipt struct {
	MessageID uint `json:"message_id"`
	ReaderID  uint `json:"reader_id"`
}

type GroupReadReceipt struct {
	MessageID uint `json:"message_id"`
	ReaderID  uint `json:"reader_id"`
	GroupID   uint `json:"group_id"`
}

type TypingNotice struct {
	SenderID uint `json:"sender_id"`
}

type MessageDeleted struct {
	MessageID uint `json:"message_id"`
	GroupID   uint `json:"group_id,omitempty"`
}

type MembershipChange struct {
	GroupID   uint   `json:"group_id"`
	GroupName string `json:"group_name"`
	UserID    uint   `json:"user_id"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
