package websocket

import (
	"errors"
	"sync"
	"time"

	"go-team-chat/internal/interfaces"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/logger"

	"go.uber.org/zap"
)

// Hub 单进程版的连接注册表 + 事件投递
// 每个用户持有一个通道集合(多设备), 这是全部连接goroutine之间唯一共享的状态
// 不做任何持久化, 进程重启后在线状态从零重建
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[interfaces.Client]struct{}

	eventHandler interfaces.ConnectionEventHandler

	retryCount    int
	retryInterval time.Duration
}

func NewHub(eventHandler interfaces.ConnectionEventHandler) *Hub {
	wsConfig := config.GlobalConfig.WebSocket

	retryCount := wsConfig.MessageRetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	retryInterval := time.Duration(wsConfig.MessageRetryIntervalMs) * time.Millisecond
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
	}

	return &Hub{
		clients:       make(map[uint]map[interfaces.Client]struct{}),
		eventHandler:  eventHandler,
		retryCount:    retryCount,
		retryInterval: retryInterval,
	}
}

// Register 把通道挂到用户的集合下, 重复注册是幂等的
func (h *Hub) Register(client interfaces.Client) {
	userID := client.GetUserID()

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[interfaces.Client]struct{})
		h.clients[userID] = set
	}
	first := len(set) == 0
	set[client] = struct{}{}
	h.mu.Unlock()

	logger.L.Info("Channel registered", zap.Uint("userID", userID))
	if first && h.eventHandler != nil {
		go h.eventHandler.HandleUserConnected(userID)
	}
}

// Unregister 把通道从所属用户集合里摘除
// 对已移除的通道调用是无操作, 不是错误
func (h *Hub) Unregister(client interfaces.Client) {
	userID := client.GetUserID()

	h.mu.Lock()
	set, ok := h.clients[userID]
	if ok {
		if _, present := set[client]; present {
			delete(set, client)
			client.Close()
		} else {
			ok = false
		}
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
	last := ok && h.clients[userID] == nil
	h.mu.Unlock()

	if !ok {
		return
	}
	logger.L.Info("Channel unregistered", zap.Uint("userID", userID))
	if last && h.eventHandler != nil {
		go h.eventHandler.HandleUserDisconnected(userID)
	}
}

// SendToUser 向该用户的全部通道投递
// 至多一次: 任一通道投成返回 true; 没有存活通道时丢弃并返回 false
func (h *Hub) SendToUser(userID uint, data []byte) (bool, error) {
	h.mu.RLock()
	targets := make([]interfaces.Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return false, nil
	}

	sent := false
	for _, client := range targets {
		if h.trySend(client, data) {
			sent = true
		}
	}
	return sent, nil
}

// trySend 先非阻塞入队, 失败后按配置间隔重试
// 已关闭或重试耗尽的通道摘掉, 避免拖慢后续投递
func (h *Hub) trySend(client interfaces.Client, data []byte) bool {
	return queueWithRetry(h, client, data, h.retryCount, h.retryInterval)
}

// queueWithRetry 两种hub共用的入队纪律
// 通道已关闭时不重试直接摘除; 缓冲持续占满说明通道已死, 重试耗尽后同样摘除
func queueWithRetry(registry interfaces.ConnectionManager, client interfaces.Client, data []byte, retryCount int, retryInterval time.Duration) bool {
	err := client.QueueBytes(data)
	for i := 0; i < retryCount && err != nil && !errors.Is(err, errClientClosed); i++ {
		time.Sleep(retryInterval)
		err = client.QueueBytes(data)
	}
	if err == nil {
		return true
	}

	if !errors.Is(err, errClientClosed) {
		logger.L.Warn("Client send buffer still full after retries, dropping channel",
			zap.Uint("userID", client.GetUserID()), zap.Int("attempts", retryCount))
	}
	registry.Unregister(client)
	return false
}

// IsClientConnected 用户是否有至少一个存活通道
func (h *Hub) IsClientConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) SetEventHandler(handler interfaces.ConnectionEventHandler) {
	h.eventHandler = handler
}
