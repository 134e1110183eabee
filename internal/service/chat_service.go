package service

import (
	"encoding/json"
	"time"

	"go-team-chat/internal/errs"
	"go-team-chat/internal/event"
	"go-team-chat/internal/model"
	"go-team-chat/internal/repository"
	"go-team-chat/pkg/logger"

	"go.uber.org/zap"
)

// 空内容但带附件的消息存储时使用的占位内容
const attachmentPlaceholderBody = "Attachment"

// ChatService 私聊消息的命令处理器, 同时充当WebSocket事件入口
type ChatService struct {
	dispatcher   *EventDispatcher
	messageRepo  *repository.DirectMessageRepository
	userRepo     *repository.UserRepository
	attachments  *AttachmentService
	groupService *GroupService
}

func NewChatService(
	dispatcher *EventDispatcher,
	messageRepo *repository.DirectMessageRepository,
	userRepo *repository.UserRepository,
	attachments *AttachmentService,
	groupService *GroupService,
) *ChatService {
	return &ChatService{
		dispatcher:   dispatcher,
		messageRepo:  messageRepo,
		userRepo:     userRepo,
		attachments:  attachments,
		groupService: groupService,
	}
}

type DirectMessageRequest struct {
	ReceiverID     uint   `json:"receiver_id" binding:"required"`
	Body           string `json:"body"`
	Attachment     string `json:"attachment"`
	AttachmentType string `json:"attachment_type"`
}

type EditMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// SendDirectMessage 校验、落库、再向接收者扇出
// 发送者不收推送, 它从同步返回值拿到回显
func (s *ChatService) SendDirectMessage(senderID uint, req DirectMessageRequest) (*event.DirectMessageView, error) {
	if senderID == req.ReceiverID {
		return nil, errs.ErrInvalidRecipient
	}

	receiver, err := s.userRepo.FindByID(req.ReceiverID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	if receiver == nil {
		return nil, errs.ErrReceiverNotFound
	}

	body, attachment, attachmentType, err := normalizeContent(req.Body, req.Attachment, req.AttachmentType)
	if err != nil {
		return nil, err
	}

	message := &model.DirectMessage{
		SenderID:       senderID,
		ReceiverID:     req.ReceiverID,
		Body:           body,
		AttachmentPath: attachment,
		AttachmentType: attachmentType,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, errs.StorageFailure(err)
	}

	view := s.buildView(message)
	s.dispatcher.DispatchToUser(req.ReceiverID, &event.ServerEvent{
		Event: event.EventNewMessage,
		Data:  view,
	})

	return view, nil
}

// MarkDirectMessageRead 只有接收者能确认已读
// 条件更新保证回执只在第一次 false->true 翻转时发出, 重复确认是无操作
func (s *ChatService) MarkDirectMessageRead(messageID, readerID uint) error {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if message == nil {
		return errs.ErrMessageNotFound
	}
	if message.ReceiverID != readerID {
		return errs.ErrNotReceiver
	}

	flipped, err := s.messageRepo.MarkRead(messageID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if flipped {
		s.dispatcher.DispatchToUser(message.SenderID, &event.ServerEvent{
			Event: event.EventMessageReadReceipt,
			Data:  event.ReadReceipt{MessageID: messageID, ReaderID: readerID},
		})
	}
	return nil
}

// EditDirectMessage 只有发送者能编辑, 编辑事件推给接收者
func (s *ChatService) EditDirectMessage(messageID, editorID uint, newBody string) (*event.DirectMessageView, error) {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	if message == nil {
		return nil, errs.ErrMessageNotFound
	}
	if message.SenderID != editorID {
		return nil, errs.ErrNotMessageSender
	}

	editedAt := time.Now()
	if err := s.messageRepo.UpdateBody(messageID, newBody, editedAt); err != nil {
		return nil, errs.StorageFailure(err)
	}
	message.Body = newBody
	message.Edited = true
	message.EditedAt = &editedAt

	view := s.buildView(message)
	s.dispatcher.DispatchToUser(message.ReceiverID, &event.ServerEvent{
		Event: event.EventMessageEdited,
		Data:  view,
	})
	return view, nil
}

// DeleteDirectMessage 硬删除消息和它的附件文件
// 记录不存在时返回 (false, nil), 调用方按404处理
func (s *ChatService) DeleteDirectMessage(messageID uint) (bool, error) {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return false, errs.StorageFailure(err)
	}
	if message == nil {
		return false, nil
	}

	found, err := s.messageRepo.Delete(messageID)
	if err != nil {
		return false, errs.StorageFailure(err)
	}
	if !found {
		return false, nil
	}

	if message.HasAttachment() {
		if err := s.attachments.Remove(message.AttachmentPath); err != nil {
			// 记录已删除, 文件清理失败只记日志
			logger.L.Warn("Failed to remove attachment of deleted message",
				zap.Uint("messageID", messageID), zap.Error(err))
		}
	}

	s.dispatcher.DispatchToUser(message.ReceiverID, &event.ServerEvent{
		Event: event.EventMessageDeleted,
		Data:  event.MessageDeleted{MessageID: messageID},
	})
	return true, nil
}

// NotifyTyping 打字指示器: 只走实时通道, 永不落库
func (s *ChatService) NotifyTyping(senderID, receiverID uint, stopped bool) {
	name := event.EventUserTyping
	if stopped {
		name = event.EventUserStopTyping
	}
	s.dispatcher.DispatchToUser(receiverID, &event.ServerEvent{
		Event: name,
		Data:  event.TypingNotice{SenderID: senderID},
	})
}

// HandleMessage 实现 interfaces.MessageHandler, 解析客户端事件信封并路由到命令
func (s *ChatService) HandleMessage(message []byte, senderID uint) {
	var clientEvent event.ClientEvent
	if err := json.Unmarshal(message, &clientEvent); err != nil {
		logger.L.Warn("Failed to unmarshal client event",
			zap.Uint("senderID", senderID), zap.Error(err))
		s.sendError(senderID, "malformed event")
		return
	}

	switch clientEvent.Event {
	case event.EventPrivateMessage:
		var in event.PrivateMessageIn
		if err := json.Unmarshal(clientEvent.Data, &in); err != nil {
			s.sendError(senderID, "malformed private_message payload")
			return
		}
		view, err := s.SendDirectMessage(senderID, DirectMessageRequest{
			ReceiverID:     in.ReceiverID,
			Body:           in.Body,
			Attachment:     in.Attachment,
			AttachmentType: in.AttachmentType,
		})
		if err != nil {
			s.sendError(senderID, err.Error())
			return
		}
		// 给发送者的回显
		s.dispatcher.DispatchToUser(senderID, &event.ServerEvent{
			Event: event.EventMessageSent,
			Data:  view,
		})

	case event.EventGroupMessage:
		var in event.GroupMessageIn
		if err := json.Unmarshal(clientEvent.Data, &in); err != nil {
			s.sendError(senderID, "malformed group_message payload")
			return
		}
		view, err := s.groupService.SendGroupMessage(in.GroupID, senderID, GroupMessageRequest{
			Body:           in.Body,
			Attachment:     in.Attachment,
			AttachmentType: in.AttachmentType,
		})
		if err != nil {
			s.sendError(senderID, err.Error())
			return
		}
		s.dispatcher.DispatchToUser(senderID, &event.ServerEvent{
			Event: event.EventGroupMessageSent,
			Data:  view,
		})

	case event.EventTyping, event.EventStopTyping:
		var in event.TypingIn
		if err := json.Unmarshal(clientEvent.Data, &in); err != nil {
			s.sendError(senderID, "malformed typing payload")
			return
		}
		s.NotifyTyping(senderID, in.ReceiverID, clientEvent.Event == event.EventStopTyping)

	case event.EventMessageRead:
		var in event.MessageReadIn
		if err := json.Unmarshal(clientEvent.Data, &in); err != nil {
			s.sendError(senderID, "malformed message_read payload")
			return
		}
		if err := s.MarkDirectMessageRead(in.MessageID, senderID); err != nil {
			s.sendError(senderID, err.Error())
		}

	case event.EventGroupMessageRead:
		var in event.MessageReadIn
		if err := json.Unmarshal(clientEvent.Data, &in); err != nil {
			s.sendError(senderID, "malformed group_message_read payload")
			return
		}
		if err := s.groupService.MarkGroupMessageRead(in.MessageID, senderID); err != nil {
			s.sendError(senderID, err.Error())
		}

	default:
		logger.L.Warn("Unknown client event",
			zap.String("event", clientEvent.Event), zap.Uint("senderID", senderID))
		s.sendError(senderID, "unknown event: "+clientEvent.Event)
	}
}

// HandleUserConnected 实现 interfaces.ConnectionEventHandler
func (s *ChatService) HandleUserConnected(userID uint) {
	logger.L.Info("User connected", zap.Uint("userID", userID))
}

func (s *ChatService) HandleUserDisconnected(userID uint) {
	logger.L.Info("User disconnected", zap.Uint("userID", userID))
}

func (s *ChatService) sendError(userID uint, msg string) {
	s.dispatcher.DispatchToUser(userID, &event.ServerEvent{
		Event: event.EventMessageError,
		Data:  event.ErrorPayload{Error: msg},
	})
}

func (s *ChatService) buildView(message *model.DirectMessage) *event.DirectMessageView {
	return &event.DirectMessageView{
		ID:             message.ID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		Body:           message.Body,
		CreatedAt:      message.CreatedAt,
		Read:           message.Read,
		AttachmentPath: message.AttachmentPath,
		AttachmentType: message.AttachmentType,
		Edited:         message.Edited,
		EditedAt:       message.EditedAt,
		Sender:         s.senderInfo(message.SenderID),
	}
}

// 读取时从身份投影填充发送者展示属性, 查不到时用占位信息继续
func (s *ChatService) senderInfo(userID uint) event.SenderInfo {
	user, err := s.userRepo.FindByID(userID)
	if err != nil || user == nil {
		logger.L.Warn("Failed to resolve sender identity, using fallback",
			zap.Uint("senderID", userID), zap.Error(err))
		return event.SenderInfo{ID: userID, Username: "Unknown", Avatar: "default.png"}
	}
	return event.SenderInfo{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
}

// normalizeContent 统一附件与内容的约束:
// 有附件时类型必须落在封闭枚举内, 空内容补占位; 无附件时类型字段必须为空
func normalizeContent(body, attachment, attachmentType string) (string, string, string, error) {
	if attachment == "" {
		return body, "", "", nil
	}
	if attachmentType == "" {
		attachmentType = model.ClassifyAttachment(attachment)
	}
	if !model.ValidAttachmentType(attachmentType) {
		return "", "", "", errs.ErrBadAttachmentType
	}
	if body == "" {
		body = attachmentPlaceholderBody
	}
	return body, attachment, attachmentType, nil
}
