package api

import (
	"net/http"

	"go-team-chat/internal/service"
	"go-team-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理收件箱视图相关的HTTP请求
type ConversationHandler struct {
	conversationService *service.ConversationService
}

func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
	}
}

// 会话列表: 每个对端用户/群组一行, 带最新消息和未读数
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	conversations, err := h.conversationService.ListConversations(userID)
	if err != nil {
		logger.L.Error("Error listing conversations", zap.Error(err), zap.Uint("userID", userID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// 两个用户之间的完整历史, 会顺带把对端发来的未读消息翻转为已读
func (h *ConversationHandler) GetConversationHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	otherID, ok := getUintParam(c, "other_user_id")
	if !ok {
		return
	}
	if userID == otherID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot fetch chat history with oneself"})
		return
	}

	messages, err := h.conversationService.GetConversationHistory(userID, otherID)
	if err != nil {
		logger.L.Error("Error getting conversation history", zap.Error(err),
			zap.Uint("userID", userID), zap.Uint("otherID", otherID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// 联系人列表
func (h *ConversationHandler) ListContacts(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	contacts, err := h.conversationService.ListContacts(userID)
	if err != nil {
		logger.L.Error("Error listing contacts", zap.Error(err), zap.Uint("userID", userID))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}
