package service

import (
	"time"

	"go-team-chat/internal/errs"
	"go-team-chat/internal/event"
	"go-team-chat/internal/model"
	"go-team-chat/internal/repository"
	"go-team-chat/pkg/logger"

	"go.uber.org/zap"
)

// GroupService 群组与群消息的命令处理器
type GroupService struct {
	dispatcher  *EventDispatcher
	groupRepo   *repository.GroupRepository
	memberRepo  *repository.GroupMemberRepository
	messageRepo *repository.GroupMessageRepository
	userRepo    *repository.UserRepository
	attachments *AttachmentService
}

func NewGroupService(
	dispatcher *EventDispatcher,
	groupRepo *repository.GroupRepository,
	memberRepo *repository.GroupMemberRepository,
	messageRepo *repository.GroupMessageRepository,
	userRepo *repository.UserRepository,
	attachments *AttachmentService,
) *GroupService {
	return &GroupService{
		dispatcher:  dispatcher,
		groupRepo:   groupRepo,
		memberRepo:  memberRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		attachments: attachments,
	}
}

type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	MemberIDs   []uint `json:"member_ids"`
}

type GroupMessageRequest struct {
	Body           string `json:"body"`
	Attachment     string `json:"attachment"`
	AttachmentType string `json:"attachment_type"`
}

type GroupView struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatorID      uint      `json:"creator_id"`
	Avatar         string    `json:"avatar"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Active         bool      `json:"active"`
	MemberIDs      []uint    `json:"member_ids"`
}

// CreateGroup 成员集合 = {创建者} ∪ memberIDs, 去重后一并入库
// 非创建者成员收到 added_to_group 推送
func (s *GroupService) CreateGroup(creatorID uint, req CreateGroupRequest) (*GroupView, error) {
	if req.Name == "" {
		return nil, errs.ErrEmptyGroupName
	}

	seen := map[uint]struct{}{creatorID: {}}
	memberIDs := []uint{creatorID}
	for _, userID := range req.MemberIDs {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		memberIDs = append(memberIDs, userID)
	}

	group := &model.Group{
		Name:           req.Name,
		Description:    req.Description,
		CreatorID:      creatorID,
		LastActivityAt: time.Now(),
		Active:         true,
	}
	if req.Avatar != "" {
		group.Avatar = req.Avatar
	}
	if err := s.groupRepo.Create(group, memberIDs); err != nil {
		return nil, errs.StorageFailure(err)
	}

	s.dispatcher.DispatchToUsers(memberIDs, creatorID, &event.ServerEvent{
		Event: event.EventAddedToGroup,
		Data:  event.MembershipChange{GroupID: group.ID, GroupName: group.Name},
	})

	return s.buildGroupView(group, memberIDs), nil
}

// SendGroupMessage 发送者必须是当前成员
// 读者集合从创建起就包含发送者, 推送发给除发送者外的所有成员
func (s *GroupService) SendGroupMessage(groupID, senderID uint, req GroupMessageRequest) (*event.GroupMessageView, error) {
	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	if group == nil {
		return nil, errs.ErrGroupNotFound
	}

	isMember, err := s.memberRepo.IsMember(groupID, senderID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	if !isMember {
		return nil, errs.ErrNotAMember
	}

	body, attachment, attachmentType, err := normalizeContent(req.Body, req.Attachment, req.AttachmentType)
	if err != nil {
		return nil, err
	}

	message := &model.GroupMessage{
		GroupID:        groupID,
		SenderID:       senderID,
		Body:           body,
		AttachmentPath: attachment,
		AttachmentType: attachmentType,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return nil, errs.StorageFailure(err)
	}

	// 消息已落库, 活跃时间更新失败不影响命令结果
	if err := s.groupRepo.TouchActivity(groupID, message.CreatedAt); err != nil {
		logger.L.Warn("Failed to touch group activity",
			zap.Uint("groupID", groupID), zap.Error(err))
	}

	view := s.buildMessageView(message, []uint{senderID})

	memberIDs, err := s.memberRepo.FindGroupMemberIDs(groupID)
	if err != nil {
		logger.L.Warn("Failed to list group members for dispatch",
			zap.Uint("groupID", groupID), zap.Error(err))
		return view, nil
	}
	s.dispatcher.DispatchToUsers(memberIDs, senderID, &event.ServerEvent{
		Event: event.EventNewGroupMessage,
		Data:  view,
	})

	return view, nil
}

// MarkGroupMessageRead 读者集合做并集, 幂等
// 只在本次确实新增时给原发送者发回执
func (s *GroupService) MarkGroupMessageRead(messageID, readerID uint) error {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if message == nil {
		return errs.ErrMessageNotFound
	}

	isMember, err := s.memberRepo.IsMember(message.GroupID, readerID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if !isMember {
		return errs.ErrNotAMember
	}

	added, err := s.messageRepo.MarkRead(messageID, readerID, time.Now())
	if err != nil {
		return errs.StorageFailure(err)
	}
	if added && readerID != message.SenderID {
		s.dispatcher.DispatchToUser(message.SenderID, &event.ServerEvent{
			Event: event.EventGroupMessageReadReceipt,
			Data: event.GroupReadReceipt{
				MessageID: messageID,
				ReaderID:  readerID,
				GroupID:   message.GroupID,
			},
		})
	}
	return nil
}

// AddMember 操作者必须是群成员; 重复添加是幂等的
func (s *GroupService) AddMember(groupID, userID, actorID uint) error {
	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if group == nil {
		return errs.ErrGroupNotFound
	}

	isMember, err := s.memberRepo.IsMember(groupID, actorID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if !isMember {
		return errs.ErrNotAMember
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if user == nil {
		return errs.ErrUserNotFound
	}

	if err := s.memberRepo.AddMember(groupID, userID); err != nil {
		return errs.StorageFailure(err)
	}

	change := event.MembershipChange{GroupID: groupID, GroupName: group.Name, UserID: userID}
	s.dispatcher.DispatchToUser(userID, &event.ServerEvent{
		Event: event.EventAddedToGroup,
		Data:  change,
	})
	if memberIDs, err := s.memberRepo.FindGroupMemberIDs(groupID); err == nil {
		s.dispatcher.DispatchToUsers(memberIDs, userID, &event.ServerEvent{
			Event: event.EventGroupMemberAdded,
			Data:  change,
		})
	}
	return nil
}

// RemoveMember 移除成员(或成员自己退群)
// 对创建者没有特殊保护, 上层产品策略自行约束
func (s *GroupService) RemoveMember(groupID, userID, actorID uint) error {
	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if group == nil {
		return errs.ErrGroupNotFound
	}

	isMember, err := s.memberRepo.IsMember(groupID, actorID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if !isMember {
		return errs.ErrNotAMember
	}

	removed, err := s.memberRepo.RemoveMember(groupID, userID)
	if err != nil {
		return errs.StorageFailure(err)
	}
	if !removed {
		return errs.ErrNotAMember
	}

	change := event.MembershipChange{GroupID: groupID, GroupName: group.Name, UserID: userID}
	s.dispatcher.DispatchToUser(userID, &event.ServerEvent{
		Event: event.EventRemovedFromGroup,
		Data:  change,
	})
	if memberIDs, err := s.memberRepo.FindGroupMemberIDs(groupID); err == nil {
		s.dispatcher.DispatchToUsers(memberIDs, userID, &event.ServerEvent{
			Event: event.EventGroupMemberRemoved,
			Data:  change,
		})
	}
	return nil
}

// EditGroupMessage 只有发送者能编辑, 编辑事件推给其他现任成员
func (s *GroupService) EditGroupMessage(messageID, editorID uint, newBody string) (*event.GroupMessageView, error) {
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

	readerIDs, err := s.messageRepo.FindReaderIDs(messageID)
	if err != nil {
		readerIDs = []uint{message.SenderID}
	}
	view := s.buildMessageView(message, readerIDs)

	if memberIDs, err := s.memberRepo.FindGroupMemberIDs(message.GroupID); err == nil {
		s.dispatcher.DispatchToUsers(memberIDs, editorID, &event.ServerEvent{
			Event: event.EventGroupMessageEdited,
			Data:  view,
		})
	}
	return view, nil
}

// DeleteGroupMessage 硬删除群消息及附件, 不存在返回 (false, nil)
func (s *GroupService) DeleteGroupMessage(messageID, actorID uint) (bool, error) {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return false, errs.StorageFailure(err)
	}
	if message == nil {
		return false, nil
	}
	if message.SenderID != actorID {
		return false, errs.ErrNotMessageSender
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
			logger.L.Warn("Failed to remove attachment of deleted group message",
				zap.Uint("messageID", messageID), zap.Error(err))
		}
	}

	if memberIDs, err := s.memberRepo.FindGroupMemberIDs(message.GroupID); err == nil {
		s.dispatcher.DispatchToUsers(memberIDs, actorID, &event.ServerEvent{
			Event: event.EventGroupMessageDeleted,
			Data:  event.MessageDeleted{MessageID: messageID, GroupID: message.GroupID},
		})
	}
	return true, nil
}

// GetGroupMessages 成员专属的群聊历史, 升序, 带读者集合和发送者信息
func (s *GroupService) GetGroupMessages(groupID, requesterID uint) ([]*event.GroupMessageView, error) {
	isMember, err := s.memberRepo.IsMember(groupID, requesterID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}
	if !isMember {
		return nil, errs.ErrNotAMember
	}

	messages, err := s.messageRepo.FindByGroup(groupID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	messageIDs := make([]uint, 0, len(messages))
	for _, m := range messages {
		messageIDs = append(messageIDs, m.ID)
	}
	readers, err := s.messageRepo.FindReadersForMessages(messageIDs)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	views := make([]*event.GroupMessageView, 0, len(messages))
	for i := range messages {
		views = append(views, s.buildMessageView(&messages[i], readers[messages[i].ID]))
	}
	return views, nil
}

// GetUserGroups 用户所属群组, 最近活跃的在前
func (s *GroupService) GetUserGroups(userID uint) ([]*GroupView, error) {
	groups, err := s.groupRepo.FindUserGroups(userID)
	if err != nil {
		return nil, errs.StorageFailure(err)
	}

	views := make([]*GroupView, 0, len(groups))
	for i := range groups {
		memberIDs, err := s.memberRepo.FindGroupMemberIDs(groups[i].ID)
		if err != nil {
			return nil, errs.StorageFailure(err)
		}
		views = append(views, s.buildGroupView(&groups[i], memberIDs))
	}
	return views, nil
}

func (s *GroupService) buildGroupView(group *model.Group, memberIDs []uint) *GroupView {
	return &GroupView{
		ID:             group.ID,
		Name:           group.Name,
		Description:    group.Description,
		CreatorID:      group.CreatorID,
		Avatar:         group.Avatar,
		LastActivityAt: group.LastActivityAt,
		Active:         group.Active,
		MemberIDs:      memberIDs,
	}
}

func (s *GroupService) buildMessageView(message *model.GroupMessage, readerIDs []uint) *event.GroupMessageView {
	if len(readerIDs) == 0 {
		readerIDs = []uint{message.SenderID}
	}
	return &event.GroupMessageView{
		ID:             message.ID,
		GroupID:        message.GroupID,
		SenderID:       message.SenderID,
		Body:           message.Body,
		CreatedAt:      message.CreatedAt,
		ReadBy:         readerIDs,
		AttachmentPath: message.AttachmentPath,
		AttachmentType: message.AttachmentType,
		Edited:         message.Edited,
		EditedAt:       message.EditedAt,
		Sender:         s.senderInfo(message.SenderID),
	}
}

func (s *GroupService) senderInfo(userID uint) event.SenderInfo {
	user, err := s.userRepo.FindByID(userID)
	if err != nil || user == nil {
		logger.L.Warn("Failed to resolve sender identity, using fallback",
			zap.Uint("senderID", userID), zap.Error(err))
		return event.SenderInfo{ID: userID, Username: "Unknown", Avatar: "default.png"}
	}
	return event.SenderInfo{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
}
