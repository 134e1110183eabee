package service

import (
	"encoding/json"
	"testing"
	"time"

	"go-team-chat/internal/errs"
	"go-team-chat/internal/event"
	"go-team-chat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatService_SendDirectMessage(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	view, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID: bob.ID,
		Body:       "hello bob",
	})
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.NotZero(t, view.ID)
	assert.Equal(t, "hello bob", view.Body)
	assert.Equal(t, "alice", view.Sender.Username)
	assert.False(t, view.Read)

	// 落库校验
	stored, err := env.directRepo.FindByID(view.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "hello bob", stored.Body)

	// 接收者异步收到 new_message, 发送者没有推送
	received := env.conns.waitForEvent(t, bob.ID, event.EventNewMessage)
	var pushed event.DirectMessageView
	require.NoError(t, json.Unmarshal(received.Data, &pushed))
	assert.Equal(t, view.ID, pushed.ID)
	assert.Equal(t, alice.ID, pushed.SenderID)
	assert.Zero(t, env.conns.countFor(alice.ID, event.EventNewMessage))
}

func TestChatService_SendDirectMessage_SelfSendRejected(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")

	_, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID: alice.ID,
		Body:       "note to self",
	})
	assert.ErrorIs(t, err, errs.ErrInvalidRecipient)
}

func TestChatService_SendDirectMessage_ReceiverNotFound(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")

	_, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID: 99999,
		Body:       "hello?",
	})
	assert.ErrorIs(t, err, errs.ErrReceiverNotFound)
}

func TestChatService_SendDirectMessage_AttachmentPlaceholder(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	// 空内容但带附件: 内容补占位, 类型从扩展名推断
	view, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID: bob.ID,
		Attachment: "1700000000_abcd1234.png",
	})
	require.NoError(t, err)
	assert.Equal(t, attachmentPlaceholderBody, view.Body)
	assert.Equal(t, model.AttachmentImage, view.AttachmentType)
}

func TestChatService_SendDirectMessage_BadAttachmentType(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	_, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID:     bob.ID,
		Body:           "x",
		Attachment:     "evil.bin",
		AttachmentType: "executable",
	})
	assert.ErrorIs(t, err, errs.ErrBadAttachmentType)
}

func TestChatService_MarkDirectMessageRead(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	view, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID: bob.ID,
		Body:       "read me",
	})
	require.NoError(t, err)

	// 只有接收者能确认
	err = env.chat.MarkDirectMessageRead(view.ID, alice.ID)
	assert.ErrorIs(t, err, errs.ErrNotReceiver)

	require.NoError(t, env.chat.MarkDirectMessageRead(view.ID, bob.ID))

	receipt := env.conns.waitForEvent(t, alice.ID, event.EventMessageReadReceipt)
	var payload event.ReadReceipt
	require.NoError(t, json.Unmarshal(receipt.Data, &payload))
	assert.Equal(t, view.ID, payload.MessageID)
	assert.Equal(t, bob.ID, payload.ReaderID)

	// 重复确认: 无操作, 不产生第二个回执
	require.NoError(t, env.chat.MarkDirectMessageRead(view.ID, bob.ID))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, env.conns.countFor(alice.ID, event.EventMessageReadReceipt))
}

func TestChatService_MarkDirectMessageRead_NotFound(t *testing.T) {
	env := setupTestEnv(t)
	bob := createTestUser(t, env, "bob")

	err := env.chat.MarkDirectMessageRead(99999, bob.ID)
	assert.ErrorIs(t, err, errs.ErrMessageNotFound)
}

func TestChatService_EditDirectMessage(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	view, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID: bob.ID,
		Body:       "typo",
	})
	require.NoError(t, err)

	// 只有发送者能编辑
	_, err = env.chat.EditDirectMessage(view.ID, bob.ID, "hijack")
	assert.ErrorIs(t, err, errs.ErrNotMessageSender)

	edited, err := env.chat.EditDirectMessage(view.ID, alice.ID, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Body)
	assert.True(t, edited.Edited)
	require.NotNil(t, edited.EditedAt)

	pushed := env.conns.waitForEvent(t, bob.ID, event.EventMessageEdited)
	var payload event.DirectMessageView
	require.NoError(t, json.Unmarshal(pushed.Data, &payload))
	assert.Equal(t, "fixed", payload.Body)
}

func TestChatService_DeleteDirectMessage(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	view, err := env.chat.SendDirectMessage(alice.ID, DirectMessageRequest{
		ReceiverID: bob.ID,
		Body:       "delete me",
	})
	require.NoError(t, err)

	found, err := env.chat.DeleteDirectMessage(view.ID)
	require.NoError(t, err)
	assert.True(t, found)

	stored, err := env.directRepo.FindByID(view.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	pushed := env.conns.waitForEvent(t, bob.ID, event.EventMessageDeleted)
	var payload event.MessageDeleted
	require.NoError(t, json.Unmarshal(pushed.Data, &payload))
	assert.Equal(t, view.ID, payload.MessageID)

	// 已删除: (false, nil), 由上层映射为404
	found, err = env.chat.DeleteDirectMessage(view.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChatService_NotifyTyping(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	env.chat.NotifyTyping(alice.ID, bob.ID, false)
	typing := env.conns.waitForEvent(t, bob.ID, event.EventUserTyping)
	var payload event.TypingNotice
	require.NoError(t, json.Unmarshal(typing.Data, &payload))
	assert.Equal(t, alice.ID, payload.SenderID)

	env.chat.NotifyTyping(alice.ID, bob.ID, true)
	env.conns.waitForEvent(t, bob.ID, event.EventUserStopTyping)
}

func TestChatService_HandleMessage_PrivateMessage(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")
	bob := createTestUser(t, env, "bob")

	payload, err := json.Marshal(event.ClientEvent{
		Event: event.EventPrivateMessage,
		Data:  json.RawMessage(`{"receiver_id": ` + uintString(bob.ID) + `, "body": "over the wire"}`),
	})
	require.NoError(t, err)

	env.chat.HandleMessage(payload, alice.ID)

	// 接收者拿到 new_message, 发送者拿到 message_sent 回显
	received := env.conns.waitForEvent(t, bob.ID, event.EventNewMessage)
	var pushed event.DirectMessageView
	require.NoError(t, json.Unmarshal(received.Data, &pushed))
	assert.Equal(t, "over the wire", pushed.Body)

	echo := env.conns.waitForEvent(t, alice.ID, event.EventMessageSent)
	var echoed event.DirectMessageView
	require.NoError(t, json.Unmarshal(echo.Data, &echoed))
	assert.Equal(t, pushed.ID, echoed.ID)
}

func TestChatService_HandleMessage_Malformed(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")

	env.chat.HandleMessage([]byte("not json"), alice.ID)
	errEv := env.conns.waitForEvent(t, alice.ID, event.EventMessageError)
	var payload event.ErrorPayload
	require.NoError(t, json.Unmarshal(errEv.Data, &payload))
	assert.Contains(t, payload.Error, "malformed")
}

func TestChatService_HandleMessage_UnknownEvent(t *testing.T) {
	env := setupTestEnv(t)
	alice := createTestUser(t, env, "alice")

	env.chat.HandleMessage([]byte(`{"event": "bogus", "data": {}}`), alice.ID)
	errEv := env.conns.waitForEvent(t, alice.ID, event.EventMessageError)
	var payload event.ErrorPayload
	require.NoError(t, json.Unmarshal(errEv.Data, &payload))
	assert.Contains(t, payload.Error, "unknown event")
}

func uintString(v uint) string {
	data, _ := json.Marshal(v)
	return string(data)
}
