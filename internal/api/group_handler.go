package api

import (
	"net/http"

	"go-team-chat/internal/service"
	"go-team-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理群组与群消息的HTTP请求
type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
	}
}

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	creatorID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.L.Warn("Failed to bind CreateGroup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	group, err := h.groupService.CreateGroup(creatorID, req)
	if err != nil {
		logger.L.Error("Error creating group", zap.Error(err), zap.Uint("creatorID", creatorID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

func (h *GroupHandler) GetUserGroups(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	groups, err := h.groupService.GetUserGroups(userID)
	if err != nil {
		logger.L.Error("Error getting user groups", zap.Error(err), zap.Uint("userID", userID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// 发送群消息(REST入口, 与WebSocket的 group_message 等价)
func (h *GroupHandler) SendGroupMessage(c *gin.Context) {
	senderID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	groupID, ok := getUintParam(c, "group_id")
	if !ok {
		return
	}

	var req service.GroupMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	view, err := h.groupService.SendGroupMessage(groupID, senderID, req)
	if err != nil {
		logger.L.Warn("Error sending group message", zap.Error(err),
			zap.Uint("groupID", groupID), zap.Uint("senderID", senderID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// 群聊历史, 仅成员可见
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	requesterID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	groupID, ok := getUintParam(c, "group_id")
	if !ok {
		return
	}

	messages, err := h.groupService.GetGroupMessages(groupID, requesterID)
	if err != nil {
		logger.L.Warn("Error getting group messages", zap.Error(err),
			zap.Uint("groupID", groupID), zap.Uint("requesterID", requesterID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type addMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (h *GroupHandler) AddGroupMember(c *gin.Context) {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	groupID, ok := getUintParam(c, "group_id")
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: user_id is required"})
		return
	}

	if err := h.groupService.AddMember(groupID, req.UserID, actorID); err != nil {
		logger.L.Warn("Error adding group member", zap.Error(err),
			zap.Uint("groupID", groupID), zap.Uint("targetUserID", req.UserID), zap.Uint("actorID", actorID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User added to group successfully"})
}

func (h *GroupHandler) RemoveGroupMember(c *gin.Context) {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	groupID, ok := getUintParam(c, "group_id")
	if !ok {
		return
	}
	targetUserID, ok := getUintParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.groupService.RemoveMember(groupID, targetUserID, actorID); err != nil {
		logger.L.Warn("Error removing group member", zap.Error(err),
			zap.Uint("groupID", groupID), zap.Uint("targetUserID", targetUserID), zap.Uint("actorID", actorID))
		respondError(c, err)
		return
	}

	message := "User removed from group successfully"
	if actorID == targetUserID {
		message = "You have left the group successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// 标记群消息已读
func (h *GroupHandler) MarkGroupMessageRead(c *gin.Context) {
	readerID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	messageID, ok := getUintParam(c, "message_id")
	if !ok {
		return
	}

	if err := h.groupService.MarkGroupMessageRead(messageID, readerID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message marked as read"})
}

// 编辑群消息
func (h *GroupHandler) EditGroupMessage(c *gin.Context) {
	editorID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	messageID, ok := getUintParam(c, "message_id")
	if !ok {
		return
	}

	var req service.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: body is required"})
		return
	}

	view, err := h.groupService.EditGroupMessage(messageID, editorID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": view})
}

// 删除群消息, 不存在时返回404
func (h *GroupHandler) DeleteGroupMessage(c *gin.Context) {
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	messageID, ok := getUintParam(c, "message_id")
	if !ok {
		return
	}

	found, err := h.groupService.DeleteGroupMessage(messageID, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}
