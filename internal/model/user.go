package model

// User 是平台身份服务维护的用户表的只读投影
// 消息核心只消费展示属性, 不负责注册/认证/资料维护
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"type:varchar(50);not null" json:"username"`
	Avatar   string `gorm:"type:varchar(255);default:'default.png'" json:"avatar"`
}
