package repository

import (
	"errors"
	"go-team-chat/internal/model"
	"go-team-chat/pkg/db"
	"time"

	"gorm.io/gorm"
)

type DirectMessageRepository struct {
	db *gorm.DB
}

func NewDirectMessageRepository() *DirectMessageRepository {
	return &DirectMessageRepository{db: db.DB}
}

// 保存新消息
func (r *DirectMessageRepository) Create(message *model.DirectMessage) error {
	return r.db.Create(message).Error
}

// 根据ID查找消息, 未找到返回 nil, nil
func (r *DirectMessageRepository) FindByID(messageID uint) (*model.DirectMessage, error) {
	var message model.DirectMessage
	err := r.db.First(&message, messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// 获取两个用户之间的全部聊天记录, 按发送时间升序, 同时刻按插入顺序
func (r *DirectMessageRepository) FindBetweenUsers(userID1, userID2 uint) ([]model.DirectMessage, error) {
	var messages []model.DirectMessage
	err := r.db.Where(
		"(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
		userID1, userID2, userID2, userID1,
	).Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// 获取用户参与的全部私聊消息(会话聚合用)
func (r *DirectMessageRepository) FindAllForUser(userID uint) ([]model.DirectMessage, error) {
	var messages []model.DirectMessage
	err := r.db.Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkRead 把未读消息置为已读
// 条件更新保证 false->true 只发生一次: 返回 true 仅代表本次调用完成了翻转
func (r *DirectMessageRepository) MarkRead(messageID uint) (bool, error) {
	result := r.db.Model(&model.DirectMessage{}).
		Where("id = ? AND `read` = ?", messageID, false).
		Update("read", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkConversationRead 把 senderID 发给 receiverID 的全部未读消息置为已读
// 返回本次翻转的消息ID, 供每条新已读消息发送一个回执
func (r *DirectMessageRepository) MarkConversationRead(receiverID, senderID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.DirectMessage{}).
			Where("sender_id = ? AND receiver_id = ? AND `read` = ?", senderID, receiverID, false).
			Order("created_at ASC, id ASC").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&model.DirectMessage{}).
			Where("id IN ?", ids).
			Update("read", true).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateBody 修改消息内容并打上编辑标记
func (r *DirectMessageRepository) UpdateBody(messageID uint, body string, editedAt time.Time) error {
	return r.db.Model(&model.DirectMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"body":      body,
			"edited":    true,
			"edited_at": editedAt,
		}).Error
}

// Delete 硬删除消息, 记录不存在时返回 false 而不是错误
func (r *DirectMessageRepository) Delete(messageID uint) (bool, error) {
	result := r.db.Delete(&model.DirectMessage{}, messageID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
