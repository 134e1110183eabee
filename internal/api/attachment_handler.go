package api

import (
	"fmt"
	"net/http"

	"go-team-chat/internal/service"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AttachmentHandler 处理附件上传下载
// 客户端先上传拿到存储名, 再把存储名放进消息命令里
type AttachmentHandler struct {
	attachments *service.AttachmentService
}

func NewAttachmentHandler(attachments *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

func (h *AttachmentHandler) Upload(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to get file from request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid file"})
		return
	}

	maxSize := int64(50 * 1024 * 1024)
	if config.GlobalConfig.File.MaxFileSize > 0 {
		maxSize = config.GlobalConfig.File.MaxFileSize
	}
	if file.Size > maxSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large, max size is %d MB", maxSize/1024/1024),
		})
		return
	}

	info, err := h.attachments.Store(file)
	if err != nil {
		logger.L.Error("Failed to store attachment", zap.Error(err), zap.String("filename", file.Filename))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attachment":      info.Name,
		"attachment_type": info.Type,
		"size":            info.Size,
	})
}

func (h *AttachmentHandler) Download(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		return
	}

	name := c.Param("name")
	path, err := h.attachments.Path(name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.File(path)
}
