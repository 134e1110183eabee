package api

import (
	"net/http"

	"go-team-chat/internal/interfaces"
	internalws "go-team-chat/internal/websocket"
	"go-team-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: 生产环境应该配置具体的域名
		return true
	},
}

type WSHandler struct {
	hub        interfaces.ConnectionManager
	msgHandler interfaces.MessageHandler
}

func NewWSHandler(hub interfaces.ConnectionManager, msgHandler interfaces.MessageHandler) *WSHandler {
	return &WSHandler{
		hub:        hub,
		msgHandler: msgHandler,
	}
}

// HandleConnection 把已认证的HTTP请求升级为WebSocket通道并挂入注册表
// 连接本身即 user_connected, 断开由 ReadPump 的注销路径处理
func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L.Error("Failed to upgrade WebSocket connection",
			zap.Uint("userID", userID), zap.Error(err))
		return
	}
	logger.L.Info("WebSocket connection upgraded", zap.Uint("userID", userID))

	client := internalws.NewClient(userID, conn, h.msgHandler, h.hub)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
