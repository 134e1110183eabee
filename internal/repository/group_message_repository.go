package repository

import (
	"errors"
	"go-team-chat/internal/model"
	"go-team-chat/pkg/db"
	"time"

	"gorm.io/gorm"
)

type GroupMessageRepository struct {
	db *gorm.DB
}

func NewGroupMessageRepository() *GroupMessageRepository {
	return &GroupMessageRepository{db: db.DB}
}

// 保存新群消息, 发送者的已读行在同一事务内写入
// 因此读者集合从创建起就包含发送者
func (r *GroupMessageRepository) Create(message *model.GroupMessage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		read := &model.GroupMessageRead{
			MessageID: message.ID,
			UserID:    message.SenderID,
			ReadAt:    message.CreatedAt,
		}
		return tx.Create(read).Error
	})
}

// 根据ID查找群消息, 未找到返回 nil, nil
func (r *GroupMessageRepository) FindByID(messageID uint) (*model.GroupMessage, error) {
	var message model.GroupMessage
	err := r.db.First(&message, messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// 获取群组的全部消息, 按发送时间升序
func (r *GroupMessageRepository) FindByGroup(groupID uint) ([]model.GroupMessage, error) {
	var messages []model.GroupMessage
	err := r.db.Where("group_id = ?", groupID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// 获取多个群组的全部消息(会话聚合用)
func (r *GroupMessageRepository) FindForGroups(groupIDs []uint) ([]model.GroupMessage, error) {
	var messages []model.GroupMessage
	if len(groupIDs) == 0 {
		return messages, nil
	}
	err := r.db.Where("group_id IN ?", groupIDs).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkRead 把读者加入消息的已读集合
// FirstOrCreate 在存储层完成原子并集, 重复确认是无操作; 返回 true 代表本次新增
func (r *GroupMessageRepository) MarkRead(messageID, userID uint, at time.Time) (bool, error) {
	read := &model.GroupMessageRead{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    at,
	}
	result := r.db.Where(model.GroupMessageRead{MessageID: messageID, UserID: userID}).
		Attrs(model.GroupMessageRead{ReadAt: at}).
		FirstOrCreate(read)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// 获取单条消息的读者ID集合
func (r *GroupMessageRepository) FindReaderIDs(messageID uint) ([]uint, error) {
	var userIDs []uint
	err := r.db.Model(&model.GroupMessageRead{}).
		Where("message_id = ?", messageID).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// 批量获取读者集合, 返回 messageID -> readerIDs
func (r *GroupMessageRepository) FindReadersForMessages(messageIDs []uint) (map[uint][]uint, error) {
	readers := make(map[uint][]uint, len(messageIDs))
	if len(messageIDs) == 0 {
		return readers, nil
	}
	var rows []model.GroupMessageRead
	if err := r.db.Where("message_id IN ?", messageIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		readers[row.MessageID] = append(readers[row.MessageID], row.UserID)
	}
	return readers, nil
}

// UpdateBody 修改群消息内容并打上编辑标记
func (r *GroupMessageRepository) UpdateBody(messageID uint, body string, editedAt time.Time) error {
	return r.db.Model(&model.GroupMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"body":      body,
			"edited":    true,
			"edited_at": editedAt,
		}).Error
}

// Delete 硬删除群消息及其已读行, 记录不存在时返回 false
func (r *GroupMessageRepository) Delete(messageID uint) (bool, error) {
	found := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&model.GroupMessage{}, messageID)
		if result.Error != nil {
			return result.Error
		}
		found = result.RowsAffected > 0
		if !found {
			return nil
		}
		return tx.Where("message_id = ?", messageID).
			Delete(&model.GroupMessageRead{}).Error
	})
	return found, err
}
