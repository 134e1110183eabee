package repository

import (
	"testing"

	"go-team-chat/internal/model"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/db"
	"go-team-chat/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 初始化测试配置与内存数据库, 并登记各表的清理
func setupTestDB(t *testing.T) {
	if err := config.InitTest(); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}
	if logger.L == nil {
		if err := logger.InitLogger(config.GlobalConfig.Log.Level, config.GlobalConfig.Log.ProductionMode); err != nil {
			t.Fatalf("Failed to initialize logger: %v", err)
		}
	}
	if err := db.InitDB(); err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	cleanupTables(t)
	t.Cleanup(func() { cleanupTables(t) })
}

func cleanupTables(t *testing.T) {
	session := db.DB.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []interface{}{
		&model.GroupMessageRead{},
		&model.GroupMessage{},
		&model.GroupMember{},
		&model.Group{},
		&model.DirectMessage{},
		&model.User{},
	} {
		if err := session.Unscoped().Delete(m).Error; err != nil {
			t.Logf("Warning: failed to cleanup table for %T: %v", m, err)
		}
	}
}

// 帮助函数: 创建测试用户
func createTestUser(t *testing.T, username string) *model.User {
	user := &model.User{
		Username: username,
		Avatar:   "default.png",
	}
	err := NewUserRepository().Create(user)
	require.NoError(t, err, "Failed to create test user %s", username)
	require.True(t, user.ID > 0)
	return user
}
