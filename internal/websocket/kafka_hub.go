package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go-team-chat/internal/interfaces"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaHub 多节点部署用的连接管理实现
// 事件先尝试投给本地通道, 本地不在线则发到Kafka, 由持有该用户连接的节点消费后投递
type KafkaHub struct {
	clients   map[uint]map[interfaces.Client]struct{}
	clientsMu sync.RWMutex

	producer   sarama.SyncProducer
	consumer   sarama.ConsumerGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	eventHandler interfaces.ConnectionEventHandler
	cfg          *config.KafkaConfig

	retryCount    int
	retryInterval time.Duration
}

// kafkaUserEvent Kafka上流转的按用户寻址的事件
type kafkaUserEvent struct {
	UserID  uint   `json:"user_id"`
	Payload []byte `json:"payload"` // 序列化后的事件信封
}

func NewKafkaHub(eventHandler interfaces.ConnectionEventHandler) (*KafkaHub, error) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := &config.GlobalConfig.Messaging.Kafka

	wsConfig := config.GlobalConfig.WebSocket
	retryCount := wsConfig.MessageRetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	retryInterval := time.Duration(wsConfig.MessageRetryIntervalMs) * time.Millisecond
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
	}

	kConfig := sarama.NewConfig()
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = true
	kConfig.Producer.Retry.Max = 3
	kConfig.Consumer.Return.Errors = true
	kConfig.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kConfig)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	consumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, kConfig)
	if err != nil {
		producer.Close()
		cancel()
		return nil, fmt.Errorf("failed to start Kafka consumer group: %w", err)
	}

	return &KafkaHub{
		clients:       make(map[uint]map[interfaces.Client]struct{}),
		producer:      producer,
		consumer:      consumer,
		ctx:           ctx,
		cancelFunc:    cancel,
		eventHandler:  eventHandler,
		cfg:           cfg,
		retryCount:    retryCount,
		retryInterval: retryInterval,
	}, nil
}

func (h *KafkaHub) StartConsumer() {
	go h.consumeEvents()
}

func (h *KafkaHub) Close() error {
	h.cancelFunc()

	if err := h.producer.Close(); err != nil {
		logger.L.Error("Failed to close Kafka producer", zap.Error(err))
	}
	if err := h.consumer.Close(); err != nil {
		logger.L.Error("Failed to close Kafka consumer group", zap.Error(err))
	}
	return nil
}

func (h *KafkaHub) Register(client interfaces.Client) {
	userID := client.GetUserID()

	h.clientsMu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[interfaces.Client]struct{})
		h.clients[userID] = set
	}
	first := len(set) == 0
	set[client] = struct{}{}
	h.clientsMu.Unlock()

	logger.L.Info("Channel registered with KafkaHub", zap.Uint("userID", userID))
	if first && h.eventHandler != nil {
		go h.eventHandler.HandleUserConnected(userID)
	}
}

func (h *KafkaHub) Unregister(client interfaces.Client) {
	userID := client.GetUserID()

	h.clientsMu.Lock()
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
	h.clientsMu.Unlock()

	if !ok {
		return
	}
	logger.L.Info("Channel unregistered from KafkaHub", zap.Uint("userID", userID))
	if last && h.eventHandler != nil {
		go h.eventHandler.HandleUserDisconnected(userID)
	}
}

func (h *KafkaHub) topicName() string {
	return fmt.Sprintf("%s_events", h.cfg.TopicPrefix)
}

// SendToUser 本地在线直接入队; 否则发布到Kafka让持有连接的节点投递
// 发布成功但本地不在线时返回 false: 实时投递是否达成由消费端决定
func (h *KafkaHub) SendToUser(userID uint, data []byte) (bool, error) {
	if h.deliverLocal(userID, data) {
		return true, nil
	}

	userEvent := &kafkaUserEvent{UserID: userID, Payload: data}
	eventBytes, err := json.Marshal(userEvent)
	if err != nil {
		return false, fmt.Errorf("failed to marshal user event: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: h.topicName(),
		Key:   sarama.StringEncoder(fmt.Sprintf("%d", userID)),
		Value: sarama.ByteEncoder(eventBytes),
	}
	if _, _, err := h.producer.SendMessage(kafkaMsg); err != nil {
		logger.L.Error("Failed to publish event to Kafka",
			zap.Uint("userID", userID), zap.Error(err))
		return false, fmt.Errorf("failed to publish event to Kafka: %w", err)
	}
	return false, nil
}

// deliverLocal 与 Hub.SendToUser 同一套入队纪律: 已关闭或重试耗尽的通道被摘掉
func (h *KafkaHub) deliverLocal(userID uint, data []byte) bool {
	h.clientsMu.RLock()
	targets := make([]interfaces.Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.clientsMu.RUnlock()

	sent := false
	for _, client := range targets {
		if queueWithRetry(h, client, data, h.retryCount, h.retryInterval) {
			sent = true
		}
	}
	return sent
}

func (h *KafkaHub) IsClientConnected(userID uint) bool {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *KafkaHub) SetEventHandler(handler interfaces.ConnectionEventHandler) {
	h.eventHandler = handler
}

func (h *KafkaHub) consumeEvents() {
	handler := &kafkaConsumerHandler{hub: h}
	topics := []string{h.topicName()}

	for {
		select {
		case <-h.ctx.Done():
			logger.L.Info("Stopping Kafka consumer")
			return
		default:
			if err := h.consumer.Consume(h.ctx, topics, handler); err != nil {
				logger.L.Error("Kafka consumer error", zap.Error(err))
				time.Sleep(5 * time.Second)
			}
		}
	}
}

type kafkaConsumerHandler struct {
	hub *KafkaHub
}

func (h *kafkaConsumerHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *kafkaConsumerHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (h *kafkaConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var userEvent kafkaUserEvent
		if err := json.Unmarshal(message.Value, &userEvent); err != nil {
			logger.L.Error("Failed to unmarshal user event from Kafka", zap.Error(err))
			session.MarkMessage(message, "")
			continue
		}
		h.hub.deliverLocal(userEvent.UserID, userEvent.Payload)
		session.MarkMessage(message, "")
	}
	return nil
}
