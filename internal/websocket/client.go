package websocket

import (
	"errors"
	"sync"
	"time"

	"go-team-chat/internal/interfaces"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4096
	defaultSendBufferSize = 256
)

// errClientClosed 投递目标通道已经关闭, 注册表据此把它摘掉而不再重试
var errClientClosed = errors.New("client channel is closed")

// Client 一条存活的投递通道, 对应一个已连接的客户端会话(设备/标签页)
// 同一用户可以同时持有多个 Client
type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte

	// 关闭信号. Send 永远不close: 并发的投递方可能正在入队
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex

	handler interfaces.MessageHandler
	manager interfaces.ConnectionManager

	writeWait      time.Duration
	pongWait       time.Duration
	maxMessageSize int64
}

func NewClient(userID uint, conn *websocket.Conn, handler interfaces.MessageHandler, manager interfaces.ConnectionManager) *Client {
	wsConfig := config.GlobalConfig.WebSocket

	writeWait := time.Duration(wsConfig.WriteWaitSeconds) * time.Second
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pongWait := time.Duration(wsConfig.PongWaitSeconds) * time.Second
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	maxMessageSize := int64(wsConfig.MaxMessageSize)
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	bufferSize := wsConfig.ClientBufferSize
	if bufferSize <= 0 {
		bufferSize = defaultSendBufferSize
	}

	return &Client{
		UserID:         userID,
		Conn:           conn,
		Send:           make(chan []byte, bufferSize),
		done:           make(chan struct{}),
		handler:        handler,
		manager:        manager,
		writeWait:      writeWait,
		pongWait:       pongWait,
		maxMessageSize: maxMessageSize,
	}
}

func (c *Client) GetUserID() uint { return c.UserID }

// QueueBytes 非阻塞入队, 缓冲满时立即报错, 重试策略由Hub决定
// 已关闭的通道返回 errClientClosed; 入队与关闭并发时消息可能落进
// 不再被消费的缓冲, 这只是丢推送, 不是错误
func (c *Client) QueueBytes(data []byte) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}

	select {
	case c.Send <- data:
		return nil
	default:
		return errors.New("client send buffer is full")
	}
}

// Close 标记通道关闭, 幂等
// WritePump 通过 done 退出, 之后缓冲里残留的事件随 Client 一起被回收
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) ReadPump() {
	defer func() {
		c.manager.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		messageType, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L.Warn("Unexpected close error", zap.Uint("userID", c.UserID), zap.Error(err))
			}
			break
		}

		if messageType == websocket.TextMessage {
			c.handler.HandleMessage(messageBytes, c.UserID)
		} else {
			logger.L.Warn("Ignoring non-text message",
				zap.Int("type", messageType), zap.Uint("userID", c.UserID))
		}
	}
}

func (c *Client) WritePump() {
	pingPeriod := (c.pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case messageBytes := <-c.Send:
			c.writeMu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := c.Conn.WriteMessage(websocket.TextMessage, messageBytes)
			if err == nil {
				// 把积压的事件一并刷出
				n := len(c.Send)
				for i := 0; i < n; i++ {
					if err = c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
						break
					}
				}
			}
			c.writeMu.Unlock()
			if err != nil {
				logger.L.Warn("Failed to write message",
					zap.Uint("userID", c.UserID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.writeMu.Lock()
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := c.Conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
