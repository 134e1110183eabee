package main

import (
	"log"

	"go-team-chat/internal/api"
	"go-team-chat/internal/middleware"
	"go-team-chat/internal/repository"
	"go-team-chat/internal/service"
	"go-team-chat/internal/websocket"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/db"
	"go-team-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 初始化配置
	if err := config.Init(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.InitLogger(config.GlobalConfig.Log.Level, config.GlobalConfig.Log.ProductionMode); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库连接
	if err := db.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// 附件存储
	attachments, err := service.NewAttachmentService()
	if err != nil {
		log.Fatalf("Failed to initialize attachment storage: %v", err)
	}

	// 仓储层
	userRepo := repository.NewUserRepository()
	directRepo := repository.NewDirectMessageRepository()
	groupRepo := repository.NewGroupRepository()
	memberRepo := repository.NewGroupMemberRepository()
	groupMsgRepo := repository.NewGroupMessageRepository()

	// 连接注册表: 事件处理器在服务构造完成后注入
	hub, err := websocket.CreateHub(nil)
	if err != nil {
		log.Fatalf("Failed to create hub: %v", err)
	}

	// 分发器显式注入各命令处理器, 不走全局状态
	dispatcher := service.NewEventDispatcher(hub)
	groupService := service.NewGroupService(dispatcher, groupRepo, memberRepo, groupMsgRepo, userRepo, attachments)
	chatService := service.NewChatService(dispatcher, directRepo, userRepo, attachments, groupService)
	conversationService := service.NewConversationService(dispatcher, directRepo, groupRepo, groupMsgRepo, userRepo)

	hub.SetEventHandler(chatService)
	if err := websocket.StartHub(hub); err != nil {
		log.Fatalf("Failed to start hub: %v", err)
	}

	// HTTP层
	chatHandler := api.NewChatHandler(chatService)
	groupHandler := api.NewGroupHandler(groupService)
	conversationHandler := api.NewConversationHandler(conversationService)
	attachmentHandler := api.NewAttachmentHandler(attachments)
	wsHandler := api.NewWSHandler(hub, chatService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.GinZapLogger())

	protected := r.Group("/api", middleware.AuthMiddleware())
	{
		protected.GET("/ws", wsHandler.HandleConnection)

		protected.POST("/messages", chatHandler.SendMessage)
		protected.POST("/messages/:message_id/read", chatHandler.MarkMessageRead)
		protected.PUT("/messages/:message_id", chatHandler.EditMessage)
		protected.DELETE("/messages/:message_id", chatHandler.DeleteMessage)

		protected.GET("/conversations", conversationHandler.ListConversations)
		protected.GET("/conversations/:other_user_id", conversationHandler.GetConversationHistory)
		protected.GET("/contacts", conversationHandler.ListContacts)

		protected.POST("/groups", groupHandler.CreateGroup)
		protected.GET("/groups", groupHandler.GetUserGroups)
		protected.POST("/groups/:group_id/messages", groupHandler.SendGroupMessage)
		protected.GET("/groups/:group_id/messages", groupHandler.GetGroupMessages)
		protected.POST("/groups/:group_id/members", groupHandler.AddGroupMember)
		protected.DELETE("/groups/:group_id/members/:user_id", groupHandler.RemoveGroupMember)
		protected.POST("/group-messages/:message_id/read", groupHandler.MarkGroupMessageRead)
		protected.PUT("/group-messages/:message_id", groupHandler.EditGroupMessage)
		protected.DELETE("/group-messages/:message_id", groupHandler.DeleteGroupMessage)

		protected.POST("/attachments", attachmentHandler.Upload)
		protected.GET("/attachments/:name", attachmentHandler.Download)
	}

	// 启动服务器
	if err := r.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
