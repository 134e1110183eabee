package interfaces

type Client interface {
	GetUserID() uint
	QueueBytes(data []byte) error
	Close()
}

// 定义了处理传入事件的接口
// service.ChatService实现
type MessageHandler interface {
	HandleMessage(message []byte, senderID uint)
}

// 定义了处理连接事件的方法
type ConnectionEventHandler interface {
	HandleUserConnected(userID uint)
	HandleUserDisconnected(userID uint)
}

// ConnectionManager 连接注册表: 维护每个用户当前存活的投递通道集合
// 一个用户可以同时有多个通道(多设备/多标签页), 状态不持久化, 进程重启即清空
type ConnectionManager interface {
	Register(client Client)
	Unregister(client Client)
	// SendToUser 将已序列化的事件送往该用户的全部存活通道
	// 没有任何存活通道时丢弃并返回 sent=false(数据本身仍可从消息存储取回)
	SendToUser(userID uint, data []byte) (sent bool, err error)
	IsClientConnected(userID uint) bool
	SetEventHandler(handler ConnectionEventHandler)
}
