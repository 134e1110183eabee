package repository

import (
	"go-team-chat/internal/model"
	"go-team-chat/pkg/db"

	"gorm.io/gorm"
)

type GroupMemberRepository struct {
	db *gorm.DB
}

func NewGroupMemberRepository() *GroupMemberRepository {
	return &GroupMemberRepository{db: db.DB}
}

// 将用户添加到群组, 已是成员时为幂等
func (r *GroupMemberRepository) AddMember(groupID, userID uint) error {
	member := &model.GroupMember{
		GroupID: groupID,
		UserID:  userID,
	}
	return r.db.FirstOrCreate(member, model.GroupMember{GroupID: groupID, UserID: userID}).Error
}

// 将用户从群组中移除, 返回是否确有成员被移除
func (r *GroupMemberRepository) RemoveMember(groupID, userID uint) (bool, error) {
	result := r.db.Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&model.GroupMember{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// 判断用户当前是否为群成员
func (r *GroupMemberRepository) IsMember(groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&model.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

// 获取群组所有成员的ID列表
func (r *GroupMemberRepository) FindGroupMemberIDs(groupID uint) ([]uint, error) {
	var userIDs []uint
	err := r.db.Model(&model.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}
