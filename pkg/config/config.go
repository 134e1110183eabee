package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	File      FileConfig      `mapstructure:"file"`
	Log       LogConfig       `mapstructure:"log"`
}

type DatabaseConfig struct {
	// 驱动: "mysql" 或 "sqlite"(测试环境)
	Driver string `mapstructure:"driver" validate:"required,oneof=mysql sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret" validate:"required"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type WebSocketConfig struct {
	ClientBufferSize int `mapstructure:"client_buffer_size"`

	WriteWaitSeconds int `mapstructure:"write_wait_seconds"`
	PongWaitSeconds  int `mapstructure:"pong_wait_seconds"`
	MaxMessageSize   int `mapstructure:"max_message_size"`
	// 重试相关配置
	MessageRetryCount      int `mapstructure:"message_retry_count"`
	MessageRetryIntervalMs int `mapstructure:"message_retry_interval_ms"`
}

type MessagingConfig struct {
	// 事件分发实现: "channel"(单进程) 或 "kafka"(多节点)
	Provider string      `mapstructure:"provider" validate:"required,oneof=channel kafka"`
	Kafka    KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	TopicPrefix   string   `mapstructure:"topic_prefix"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

type FileConfig struct {
	StoragePath string `mapstructure:"storage_path"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

type LogConfig struct {
	Level          string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error fatal panic"`
	ProductionMode bool   `mapstructure:"production_mode"`
}

var GlobalConfig Config

func Init() error {
	return load("config")
}

// 测试用的配置文件
func InitTest() error {
	return load("config.test")
}

func load(name string) error {
	// 获取项目根目录
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(filepath.Dir(filepath.Dir(b)))

	viper.SetConfigName(name)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.Join(basepath, "config"))

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&GlobalConfig); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
