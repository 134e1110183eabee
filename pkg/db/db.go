package db

import (
	"fmt"
	"go-team-chat/internal/model"
	"go-team-chat/pkg/config"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// 初始化数据库连接并迁移消息核心的表结构
// users 表的内容由平台的身份服务同步, 这里只读
func InitDB() error {
	cfg := config.GlobalConfig.Database

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		dialector = mysql.Open(cfg.DSN)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	err = DB.AutoMigrate(
		&model.User{},
		&model.DirectMessage{},
		&model.Group{},
		&model.GroupMember{},
		&model.GroupMessage{},
		&model.GroupMessageRead{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
