package service

import (
	"go-team-chat/internal/event"
	"go-team-chat/internal/interfaces"
	"go-team-chat/pkg/logger"

	"go.uber.org/zap"
)

// EventDispatcher 把领域事件扇出到目标用户的存活通道
// 显式构造后注入各命令处理器, 不走全局查找
// 投递是尽力而为: 失败只记日志, 绝不反馈给发起命令的调用者
type EventDispatcher struct {
	conns interfaces.ConnectionManager
}

func NewEventDispatcher(conns interfaces.ConnectionManager) *EventDispatcher {
	return &EventDispatcher{conns: conns}
}

// DispatchToUser 向单个用户的全部通道推送事件
// 用户没有存活通道时事件被丢弃, 消息本体仍可从存储取回
func (d *EventDispatcher) DispatchToUser(userID uint, ev *event.ServerEvent) {
	data, err := ev.Marshal()
	if err != nil {
		logger.L.Error("Failed to marshal server event",
			zap.String("event", ev.Event), zap.Error(err))
		return
	}
	d.send(userID, ev.Event, data)
}

// DispatchToUsers 向一组用户推送事件, excludeID 通常是发送者
func (d *EventDispatcher) DispatchToUsers(userIDs []uint, excludeID uint, ev *event.ServerEvent) {
	data, err := ev.Marshal()
	if err != nil {
		logger.L.Error("Failed to marshal server event",
			zap.String("event", ev.Event), zap.Error(err))
		return
	}
	for _, userID := range userIDs {
		if userID == excludeID {
			continue
		}
		d.send(userID, ev.Event, data)
	}
}

// send 在独立goroutine里投递, 命令处理器对调用方的响应绝不等待投递
func (d *EventDispatcher) send(userID uint, name string, data []byte) {
	go d.deliver(userID, name, data)
}

func (d *EventDispatcher) deliver(userID uint, name string, data []byte) {
	sent, err := d.conns.SendToUser(userID, data)
	if err != nil {
		logger.L.Warn("Failed to dispatch event",
			zap.String("event", name), zap.Uint("targetUserID", userID), zap.Error(err))
		return
	}
	if !sent {
		logger.L.Debug("Dropped event, user has no live channel",
			zap.String("event", name), zap.Uint("targetUserID", userID))
	}
}
