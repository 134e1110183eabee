package repository

import (
	"testing"
	"time"

	"go-team-chat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectMessageRepository_CreateAndFind(t *testing.T) {
	setupTestDB(t)
	repo := NewDirectMessageRepository()
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	message := &model.DirectMessage{
		SenderID:   alice.ID,
		ReceiverID: bob.ID,
		Body:       "hello",
	}
	require.NoError(t, repo.Create(message))
	assert.NotZero(t, message.ID)

	found, err := repo.FindByID(message.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "hello", found.Body)
	assert.Equal(t, alice.ID, found.SenderID)
	assert.Equal(t, bob.ID, found.ReceiverID)
	assert.False(t, found.Read)
}

func TestDirectMessageRepository_FindByID_NotFound(t *testing.T) {
	setupTestDB(t)
	repo := NewDirectMessageRepository()

	found, err := repo.FindByID(99999)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDirectMessageRepository_FindBetweenUsers_Order(t *testing.T) {
	setupTestDB(t)
	repo := NewDirectMessageRepository()
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")
	carol := createTestUser(t, "carol")

	base := time.Now().Add(-time.Minute)
	msgs := []*model.DirectMessage{
		{SenderID: alice.ID, ReceiverID: bob.ID, Body: "first", CreatedAt: base},
		{SenderID: bob.ID, ReceiverID: alice.ID, Body: "second", CreatedAt: base.Add(time.Second)},
		{SenderID: alice.ID, ReceiverID: bob.ID, Body: "third", CreatedAt: base.Add(2 * time.Second)},
		// 无关会话, 不应出现在结果里
		{SenderID: alice.ID, ReceiverID: carol.ID, Body: "other", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, m := range msgs {
		require.NoError(t, repo.Create(m))
	}

	found, err := repo.FindBetweenUsers(alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "first", found[0].Body)
	assert.Equal(t, "second", found[1].Body)
	assert.Equal(t, "third", found[2].Body)
	for i := 1; i < len(found); i++ {
		assert.False(t, found[i].CreatedAt.Before(found[i-1].CreatedAt),
			"messages must be in non-decreasing timestamp order")
	}
}

func TestDirectMessageRepository_MarkRead_FirstTransitionOnly(t *testing.T) {
	setupTestDB(t)
	repo := NewDirectMessageRepository()
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	message := &model.DirectMessage{SenderID: alice.ID, ReceiverID: bob.ID, Body: "unread"}
	require.NoError(t, repo.Create(message))

	flipped, err := repo.MarkRead(message.ID)
	require.NoError(t, err)
	assert.True(t, flipped, "first mark should flip the flag")

	// 幂等: 第二次不再翻转
	flipped, err = repo.MarkRead(message.ID)
	require.NoError(t, err)
	assert.False(t, flipped, "second mark must be a no-op")

	found, err := repo.FindByID(message.ID)
	require.NoError(t, err)
	assert.True(t, found.Read)
}

func TestDirectMessageRepository_MarkConversationRead(t *testing.T) {
	setupTestDB(t)
	repo := NewDirectMessageRepository()
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	var fromAlice []*model.DirectMessage
	for i := 0; i < 3; i++ {
		m := &model.DirectMessage{SenderID: alice.ID, ReceiverID: bob.ID, Body: "m"}
		require.NoError(t, repo.Create(m))
		fromAlice = append(fromAlice, m)
	}
	// 反向消息不受影响
	reverse := &model.DirectMessage{SenderID: bob.ID, ReceiverID: alice.ID, Body: "r"}
	require.NoError(t, repo.Create(reverse))

	ids, err := repo.MarkConversationRead(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	for _, m := range fromAlice {
		found, err := repo.FindByID(m.ID)
		require.NoError(t, err)
		assert.True(t, found.Read)
	}
	foundReverse, err := repo.FindByID(reverse.ID)
	require.NoError(t, err)
	assert.False(t, foundReverse.Read)

	// 再次调用: 没有新翻转
	ids, err = repo.MarkConversationRead(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDirectMessageRepository_UpdateBody(t *testing.T) {
	setupTestDB(t)
	repo := NewDirectMessageRepository()
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	message := &model.DirectMessage{SenderID: alice.ID, ReceiverID: bob.ID, Body: "typo"}
	require.NoError(t, repo.Create(message))

	require.NoError(t, repo.UpdateBody(message.ID, "fixed", time.Now()))

	found, err := repo.FindByID(message.ID)
	require.NoError(t, err)
	assert.Equal(t, "fixed", found.Body)
	assert.True(t, found.Edited)
	require.NotNil(t, found.EditedAt)
}

func TestDirectMessageRepository_Delete(t *testing.T) {
	setupTestDB(t)
	repo := NewDirectMessageRepository()
	alice := createTestUser(t, "alice")
	bob := createTestUser(t, "bob")

	message := &model.DirectMessage{SenderID: alice.ID, ReceiverID: bob.ID, Body: "bye"}
	require.NoError(t, repo.Create(message))

	found, err := repo.Delete(message.ID)
	require.NoError(t, err)
	assert.True(t, found)

	// 硬删除后从历史消失
	remaining, err := repo.FindBetweenUsers(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// 删除不存在的记录: false而不是错误
	found, err = repo.Delete(message.ID)
	require.NoError(t, err)
	assert.False(t, found)
}
