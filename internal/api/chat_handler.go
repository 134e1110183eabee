package api

import (
	"net/http"

	"go-team-chat/internal/service"
	"go-team-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理私聊消息的HTTP请求
type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// 发送消息, 返回含发送者信息的完整消息用于界面回显
func (h *ChatHandler) SendMessage(c *gin.Context) {
	senderID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req service.DirectMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.L.Warn("Failed to bind SendMessage request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	view, err := h.chatService.SendDirectMessage(senderID, req)
	if err != nil {
		logger.L.Warn("Error sending message", zap.Error(err), zap.Uint("senderID", senderID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// 标记消息已读
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	readerID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	messageID, ok := getUintParam(c, "message_id")
	if !ok {
		return
	}

	if err := h.chatService.MarkDirectMessageRead(messageID, readerID); err != nil {
		logger.L.Warn("Error marking message read", zap.Error(err),
			zap.Uint("messageID", messageID), zap.Uint("readerID", readerID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message marked as read"})
}

// 编辑消息内容
func (h *ChatHandler) EditMessage(c *gin.Context) {
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

	view, err := h.chatService.EditDirectMessage(messageID, editorID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": view})
}

// 删除消息, 不存在时返回404
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		return
	}
	messageID, ok := getUintParam(c, "message_id")
	if !ok {
		return
	}

	found, err := h.chatService.DeleteDirectMessage(messageID)
	if err != nil {
		logger.L.Error("Error deleting message", zap.Error(err), zap.Uint("messageID", messageID))
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}
