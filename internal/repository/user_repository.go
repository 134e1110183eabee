package repository

import (
	"errors"
	"go-team-chat/internal/model"
	"go-team-chat/pkg/db"

	"gorm.io/gorm"
)

// UserRepository 身份投影的只读访问
// 写入只发生在平台身份服务的同步过程和测试装置里
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository() *UserRepository {
	return &UserRepository{db: db.DB}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// 根据ID查找用户, 未找到返回 nil, nil
func (r *UserRepository) FindByID(userID uint) (*model.User, error) {
	var user model.User
	err := r.db.First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// 批量查找, 返回 id -> user 映射, 用于读取时填充发送者信息
func (r *UserRepository) FindByIDs(userIDs []uint) (map[uint]*model.User, error) {
	users := make(map[uint]*model.User, len(userIDs))
	if len(userIDs) == 0 {
		return users, nil
	}
	var rows []model.User
	if err := r.db.Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		users[rows[i].ID] = &rows[i]
	}
	return users, nil
}

// 联系人列表: 除自己以外的全部用户
func (r *UserRepository) FindAllExcept(userID uint) ([]model.User, error) {
	var users []model.User
	err := r.db.Where("id <> ?", userID).Order("username ASC").Find(&users).Error
	return users, err
}
