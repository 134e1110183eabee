package websocket

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go-team-chat/pkg/config"
	"go-team-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient 可控的投递通道替身
type fakeClient struct {
	userID uint

	mu       sync.Mutex
	received [][]byte
	full     bool
	closed   bool
}

func (c *fakeClient) GetUserID() uint { return c.userID }

func (c *fakeClient) QueueBytes(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("send buffer full")
	}
	c.received = append(c.received, data)
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) receivedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// recordingEventHandler 记录连接生命周期回调
type recordingEventHandler struct {
	mu           sync.Mutex
	connected    []uint
	disconnected []uint
}

func (h *recordingEventHandler) HandleUserConnected(userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, userID)
}

func (h *recordingEventHandler) HandleUserDisconnected(userID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, userID)
}

func (h *recordingEventHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connected), len(h.disconnected)
}

func setupHubTest(t *testing.T) *Hub {
	if err := config.InitTest(); err != nil {
		t.Fatalf("Failed to initialize config: %v", err)
	}
	if logger.L == nil {
		if err := logger.InitLogger(config.GlobalConfig.Log.Level, config.GlobalConfig.Log.ProductionMode); err != nil {
			t.Fatalf("Failed to initialize logger: %v", err)
		}
	}
	hub := NewHub(nil)
	// 测试里重试要快
	hub.retryCount = 1
	hub.retryInterval = 5 * time.Millisecond
	return hub
}

func TestHub_RegisterAndSend(t *testing.T) {
	hub := setupHubTest(t)
	client := &fakeClient{userID: 1}

	assert.False(t, hub.IsClientConnected(1))
	hub.Register(client)
	assert.True(t, hub.IsClientConnected(1))

	sent, err := hub.SendToUser(1, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, client.receivedCount())
}

func TestHub_SendToUser_NoChannels(t *testing.T) {
	hub := setupHubTest(t)

	// 没有存活通道: 丢弃而不是错误
	sent, err := hub.SendToUser(42, []byte("payload"))
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestHub_MultiDevice(t *testing.T) {
	hub := setupHubTest(t)
	phone := &fakeClient{userID: 1}
	laptop := &fakeClient{userID: 1}

	hub.Register(phone)
	hub.Register(laptop)

	// 同一用户的所有通道都收到
	sent, err := hub.SendToUser(1, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, phone.receivedCount())
	assert.Equal(t, 1, laptop.receivedCount())

	// 摘掉一个通道, 另一个不受影响
	hub.Unregister(phone)
	assert.True(t, hub.IsClientConnected(1))
	assert.True(t, phone.isClosed())
	assert.False(t, laptop.isClosed())

	sent, err = hub.SendToUser(1, []byte("again"))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, phone.receivedCount())
	assert.Equal(t, 2, laptop.receivedCount())

	hub.Unregister(laptop)
	assert.False(t, hub.IsClientConnected(1))
}

func TestHub_RegisterIdempotent(t *testing.T) {
	hub := setupHubTest(t)
	client := &fakeClient{userID: 1}

	hub.Register(client)
	hub.Register(client)

	// 重复注册不产生重复投递
	sent, err := hub.SendToUser(1, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, client.receivedCount())
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	hub := setupHubTest(t)
	registered := &fakeClient{userID: 1}
	stranger := &fakeClient{userID: 1}

	hub.Register(registered)
	// 从未注册过的通道: 无操作, 已注册的不受影响
	hub.Unregister(stranger)
	assert.True(t, hub.IsClientConnected(1))
	assert.False(t, stranger.isClosed())

	hub.Unregister(registered)
	hub.Unregister(registered)
	assert.False(t, hub.IsClientConnected(1))
}

func TestHub_DeadChannelDropped(t *testing.T) {
	hub := setupHubTest(t)
	dead := &fakeClient{userID: 1, full: true}
	alive := &fakeClient{userID: 1}

	hub.Register(dead)
	hub.Register(alive)

	// 重试耗尽的通道被摘掉, 存活通道仍然投成
	sent, err := hub.SendToUser(1, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, alive.receivedCount())
	assert.True(t, dead.isClosed())
	assert.True(t, hub.IsClientConnected(1))
}

func TestHub_ConnectionEvents(t *testing.T) {
	hub := setupHubTest(t)
	handler := &recordingEventHandler{}
	hub.SetEventHandler(handler)

	phone := &fakeClient{userID: 7}
	laptop := &fakeClient{userID: 7}

	// 第一个通道触发上线回调, 第二个不再触发
	hub.Register(phone)
	require.Eventually(t, func() bool {
		connected, _ := handler.counts()
		return connected == 1
	}, time.Second, 5*time.Millisecond)

	hub.Register(laptop)
	time.Sleep(50 * time.Millisecond)
	connected, disconnected := handler.counts()
	assert.Equal(t, 1, connected)
	assert.Zero(t, disconnected)

	// 只有最后一个通道离开才算下线
	hub.Unregister(phone)
	time.Sleep(50 * time.Millisecond)
	_, disconnected = handler.counts()
	assert.Zero(t, disconnected)

	hub.Unregister(laptop)
	require.Eventually(t, func() bool {
		_, disconnected := handler.counts()
		return disconnected == 1
	}, time.Second, 5*time.Millisecond)
}

// 断开与投递并发时不允许panic: Unregister 走 done 信号而不是close(Send)
func TestHub_UnregisterDuringDispatch(t *testing.T) {
	hub := setupHubTest(t)
	client := NewClient(1, nil, nil, hub)
	hub.Register(client)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				hub.SendToUser(1, []byte("payload"))
			}
		}()
	}
	hub.Unregister(client)
	wg.Wait()

	assert.False(t, hub.IsClientConnected(1))
	sent, err := hub.SendToUser(1, []byte("payload"))
	require.NoError(t, err)
	assert.False(t, sent)
}

// 已关闭的通道在下一次投递时被摘掉, 不做无意义的重试
func TestHub_ClosedChannelDroppedOnSend(t *testing.T) {
	hub := setupHubTest(t)
	closed := NewClient(1, nil, nil, hub)
	alive := &fakeClient{userID: 1}

	hub.Register(closed)
	hub.Register(alive)
	closed.Close()

	sent, err := hub.SendToUser(1, []byte("payload"))
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 1, alive.receivedCount())

	// 关闭的通道已被摘掉, 存活的留下
	assert.True(t, hub.IsClientConnected(1))
	hub.Unregister(alive)
	assert.False(t, hub.IsClientConnected(1))
}
