package service

import (
	"sort"
	"time"

	"go-team-chat/internal/errs"
	"go-team-chat/internal/event"
	"go-team-chat/internal/model"
	"go-team-chat/internal/repository"
	"go-team-chat/pkg/logger"

	"go.uber.org/zap"
)

// ConversationService 按需派生用户的收件箱视图
// 会话从不落库, 每次查询都从消息存储重新计算, 因此不会过期
type ConversationService struct {
	dispatcher   *EventDispatcher
	directRepo   *repository.DirectMessageRepository
	groupRepo    *repository.GroupRepository
	groupMsgRepo *repository.GroupMessageRepository
	userRepo     *repository.UserRepository
}

func NewConversationService(
	dispatcher *EventDispatcher,
	directRepo *repository.DirectMessageRepository,
	groupRepo *repository.GroupRepository,
	groupMsgRepo *repository.GroupMessageRepository,
	userRepo *repository.UserRepository,
) *ConversationService {
	return &ConversationService{
		dispatcher:   dispatcher,
		directRepo:   directRepo,
		groupRepo:    groupRepo,
		groupMsgRepo: groupMsgRepo,
		userRepo:     userRepo,
	}
}

// Conversation 派生的收件箱行: 每个对端用户或群组一行
type Conversation struct {
	Kind string `json:"kind"` // "direct" | "group"

	CounterpartID uint `json:"counterpart_id,omitempty"`
	GroupID       uint `json:"group_id,omitempty"`

	Name   string `json:"name"`
	Avatar string `json:"avatar"`

	LastBody      string    `json:"last_body"`
	LastSenderID  uint      `json:"last_sender_id"`
	LastMessageAt time.Time `json:"last_message_at"`

	UnreadCount int `json:"unread_count"`
}

// ListConversations 扫描用户相关的私聊与群聊消息, 按对端/群组分桶,
// 每桶保留最新一条消息并统计未读, 最近活跃的在前
// 空内容且无附件的消息视为噪音, 不参与会话列表构建(但仍保留在完整历史里)
func (s *ConversationService) ListConversations(userID uint) ([]*Conversation, error) {
	conversations := make([]*Conversation, 0)

	directMessages, err := s.directRepo.FindAllForUser(userID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	direct := make(map[uint]*Conversation)
	for i := range directMessages {
		msg := &directMessages[i]
		if msg.Body == "" && !msg.HasAttachment() {
			continue
		}
		counterpartID := msg.SenderID
		if counterpartID == userID {
			counterpartID = msg.ReceiverID
		}
		conv, ok := direct[counterpartID]
		if !ok {
			conv = &Conversation{Kind: "direct", CounterpartID: counterpartID}
			direct[counterpartID] = conv
		}
		// 消息按时间升序扫描, 最后一条即最新
		conv.LastBody = msg.Body
		conv.LastSenderID = msg.SenderID
		conv.LastMessageAt = msg.CreatedAt
		if msg.ReceiverID == userID && !msg.Read {
			conv.UnreadCount++
		}
	}

	counterpartIDs := make([]uint, 0, len(direct))
	for id := range direct {
		counterpartIDs = append(counterpartIDs, id)
	}
	counterparts, err := s.userRepo.FindByIDs(counterpartIDs)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	for id, conv := range direct {
		if user, ok := counterparts[id]; ok {
			conv.Name = user.Username
			conv.Avatar = user.Avatar
		} else {
			conv.Name = "Unknown"
			conv.Avatar = "default.png"
		}
		conversations = append(conversations, conv)
	}

	groupConvs, err := s.listGroupConversations(userID)
	if err != nil {
		return nil, err
	}
	conversations = append(conversations, groupConvs...)

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt.After(conversations[j].LastMessageAt)
	})
	return conversations, nil
}

func (s *ConversationService) listGroupConversations(userID uint) ([]*Conversation, error) {
	groups, err := s.groupRepo.FindUserGroups(userID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	groupIDs := make([]uint, 0, len(groups))
	byID := make(map[uint]*model.Group, len(groups))
	for i := range groups {
		groupIDs = append(groupIDs, groups[i].ID)
		byID[groups[i].ID] = &groups[i]
	}

	messages, err := s.groupMsgRepo.FindForGroups(groupIDs)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	messageIDs := make([]uint, 0, len(messages))
	for i := range messages {
		messageIDs = append(messageIDs, messages[i].ID)
	}
	readers, err := s.groupMsgRepo.FindReadersForMessages(messageIDs)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	buckets := make(map[uint]*Conversation)
	for i := range messages {
		msg := &messages[i]
		if msg.Body == "" && !msg.HasAttachment() {
			continue
		}
		conv, ok := buckets[msg.GroupID]
		if !ok {
			group := byID[msg.GroupID]
			conv = &Conversation{
				Kind:    "group",
				GroupID: msg.GroupID,
				Name:    group.Name,
				Avatar:  group.Avatar,
			}
			buckets[msg.GroupID] = conv
		}
		conv.LastBody = msg.Body
		conv.LastSenderID = msg.SenderID
		conv.LastMessageAt = msg.CreatedAt
		if msg.SenderID != userID && !containsID(readers[msg.ID], userID) {
			conv.UnreadCount++
		}
	}

	conversations := make([]*Conversation, 0, len(buckets))
	for _, conv := range buckets {
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// GetConversationHistory 两个用户之间的完整历史, 升序
// 副作用: 对端发来的未读消息全部翻转为已读, 并按消息逐条给对端发回执
func (s *ConversationService) GetConversationHistory(userID, otherID uint) ([]*event.DirectMessageView, error) {
	other, err := s.userRepo.FindByID(otherID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	if other == nil {
		return nil, errs.ErrUserNotFound
	}

	messages, err := s.directRepo.FindBetweenUsers(userID, otherID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	newlyRead, err := s.directRepo.MarkConversationRead(userID, otherID)
	if err != nil {
		// 历史已取到, 批量已读失败不阻塞返回
		logger.L.Warn("Failed to bulk-mark conversation read",
			zap.Uint("userID", userID), zap.Uint("otherID", otherID), zap.Error(err))
		newlyRead = nil
	}
	flipped := make(map[uint]struct{}, len(newlyRead))
	for _, id := range newlyRead {
		flipped[id] = struct{}{}
		s.dispatcher.DispatchToUser(otherID, &event.ServerEvent{
			Event: event.EventMessageReadReceipt,
			Data:  event.ReadReceipt{MessageID: id, ReaderID: userID},
		})
	}

	// 两个参与者的身份信息各取一次
	users, err := s.userRepo.FindByIDs([]uint{userID, otherID})
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	views := make([]*event.DirectMessageView, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		if _, ok := flipped[msg.ID]; ok {
			msg.Read = true
		}
		sender := event.SenderInfo{ID: msg.SenderID, Username: "Unknown", Avatar: "default.png"}
		if user, ok := users[msg.SenderID]; ok {
			sender = event.SenderInfo{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
		}
		views = append(views, &event.DirectMessageView{
			ID:             msg.ID,
			SenderID:       msg.SenderID,
			ReceiverID:     msg.ReceiverID,
			Body:           msg.Body,
			CreatedAt:      msg.CreatedAt,
			Read:           msg.Read,
			AttachmentPath: msg.AttachmentPath,
			AttachmentType: msg.AttachmentType,
			Edited:         msg.Edited,
			EditedAt:       msg.EditedAt,
			Sender:         sender,
		})
	}
	return views, nil
}

// ListContacts 联系人列表: 除自己外的全部平台用户
func (s *ConversationService) ListContacts(userID uint) ([]model.User, error) {
	users, err := s.userRepo.FindAllExcept(userID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	return users, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
