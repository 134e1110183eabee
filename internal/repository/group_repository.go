package repository

import (
	"errors"
	"go-team-chat/internal/model"
	"go-team-chat/pkg/db"
	"time"

	"gorm.io/gorm"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository() *GroupRepository {
	return &GroupRepository{db: db.DB}
}

// 创建新群组, 并在同一事务内写入成员行
// memberIDs 需已去重且包含创建者
func (r *GroupRepository) Create(group *model.Group, memberIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		for _, userID := range memberIDs {
			member := &model.GroupMember{
				GroupID: group.ID,
				UserID:  userID,
			}
			if err := tx.Create(member).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// 根据ID查找群组, 未找到返回 nil, nil
func (r *GroupRepository) FindByID(groupID uint) (*model.Group, error) {
	var group model.Group
	err := r.db.First(&group, groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// 查找用户所属的所有群组, 最近活跃的在前
func (r *GroupRepository) FindUserGroups(userID uint) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.Joins("JOIN group_members ON groups.id = group_members.group_id").
		Where("group_members.user_id = ?", userID).
		Order("groups.last_activity_at DESC").
		Find(&groups).Error
	return groups, err
}

// TouchActivity 更新群组最近活跃时间
func (r *GroupRepository) TouchActivity(groupID uint, at time.Time) error {
	return r.db.Model(&model.Group{}).
		Where("id = ?", groupID).
		Update("last_activity_at", at).Error
}
