package service

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go-team-chat/internal/interfaces"
	"go-team-chat/internal/model"
	"go-team-chat/internal/repository"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/db"
	"go-team-chat/pkg/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeConnManager 记录每个用户收到的事件字节, 代替真实的连接注册表
type fakeConnManager struct {
	mu   sync.Mutex
	sent map[uint][][]byte
}

func newFakeConnManager() *fakeConnManager {
	return &fakeConnManager{sent: make(map[uint][][]byte)}
}

func (f *fakeConnManager) Register(client interfaces.Client)   {}
func (f *fakeConnManager) Unregister(client interfaces.Client) {}
func (f *fakeConnManager) IsClientConnected(userID uint) bool  { return true }
func (f *fakeConnManager) SetEventHandler(handler interfaces.ConnectionEventHandler) {}

func (f *fakeConnManager) SendToUser(userID uint, data []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[userID] = append(f.sent[userID], data)
	return true, nil
}

type recordedEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// eventsFor 解码该用户目前收到的全部事件信封
func (f *fakeConnManager) eventsFor(t *testing.T, userID uint) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]recordedEvent, 0, len(f.sent[userID]))
	for _, data := range f.sent[userID] {
		var ev recordedEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
	}
	return events
}

func (f *fakeConnManager) countFor(userID uint, eventName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, data := range f.sent[userID] {
		var ev recordedEvent
		if json.Unmarshal(data, &ev) == nil && ev.Event == eventName {
			count++
		}
	}
	return count
}

// waitForEvent 投递走独立goroutine, 轮询等到该用户收到指定事件
func (f *fakeConnManager) waitForEvent(t *testing.T, userID uint, eventName string) recordedEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range f.eventsFor(t, userID) {
			if ev.Event == eventName {
				return ev
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for event %q to user %d, got: %+v", eventName, userID, f.eventsFor(t, userID))
	return recordedEvent{}
}

// testEnv 一套带假连接层的完整服务装配
type testEnv struct {
	conns         *fakeConnManager
	dispatcher    *EventDispatcher
	chat          *ChatService
	groups        *GroupService
	conversations *ConversationService
	attachments   *AttachmentService
	userRepo      *repository.UserRepository
	directRepo    *repository.DirectMessageRepository
	groupMsgRepo  *repository.GroupMessageRepository
}

func setupTestEnv(t *testing.T) *testEnv {
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

	config.GlobalConfig.File.StoragePath = t.TempDir()
	attachments, err := NewAttachmentService()
	require.NoError(t, err)

	conns := newFakeConnManager()
	dispatcher := NewEventDispatcher(conns)

	userRepo := repository.NewUserRepository()
	directRepo := repository.NewDirectMessageRepository()
	groupRepo := repository.NewGroupRepository()
	memberRepo := repository.NewGroupMemberRepository()
	groupMsgRepo := repository.NewGroupMessageRepository()

	groups := NewGroupService(dispatcher, groupRepo, memberRepo, groupMsgRepo, userRepo, attachments)
	chat := NewChatService(dispatcher, directRepo, userRepo, attachments, groups)
	conversations := NewConversationService(dispatcher, directRepo, groupRepo, groupMsgRepo, userRepo)

	return &testEnv{
		conns:         conns,
		dispatcher:    dispatcher,
		chat:          chat,
		groups:        groups,
		conversations: conversations,
		attachments:   attachments,
		userRepo:      userRepo,
		directRepo:    directRepo,
		groupMsgRepo:  groupMsgRepo,
	}
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

func createTestUser(t *testing.T, env *testEnv, username string) *model.User {
	user := &model.User{
		Username: username,
		Avatar:   "default.png",
	}
	require.NoError(t, env.userRepo.Create(user))
	require.True(t, user.ID > 0)
	return user
}
