package websocket

import (
	"errors"

	"go-team-chat/internal/interfaces"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/logger"

	"go.uber.org/zap"
)

// CreateHub 根据配置创建相应的连接管理实现
func CreateHub(eventHandler interfaces.ConnectionEventHandler) (interfaces.ConnectionManager, error) {
	provider := config.GlobalConfig.Messaging.Provider
	logger.L.Info("Creating hub with messaging provider", zap.String("provider", provider))

	switch provider {
	case "channel":
		return NewHub(eventHandler), nil

	case "kafka":
		return NewKafkaHub(eventHandler)

	default:
		return nil, errors.New("unsupported messaging provider")
	}
}

// StartHub 启动需要后台循环的实现
func StartHub(hub interfaces.ConnectionManager) error {
	switch h := hub.(type) {
	case *Hub:
		// 基于锁的实现没有后台循环
		return nil
	case *KafkaHub:
		h.StartConsumer()
		return nil
	default:
		return errors.New("unknown hub type")
	}
}
