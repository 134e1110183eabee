package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-team-chat/internal/errs"
	"go-team-chat/internal/model"
	"go-team-chat/pkg/config"
	"go-team-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AttachmentService 管理消息附件文件
type AttachmentService struct {
	basePath string
}

// StoredAttachment 附件元数据, 消息记录里只存 Name 和 Type
type StoredAttachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

func NewAttachmentService() (*AttachmentService, error) {
	basePath := "uploads"
	if config.GlobalConfig.File.StoragePath != "" {
		basePath = config.GlobalConfig.File.StoragePath
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &AttachmentService{basePath: basePath}, nil
}

// Store 保存上传的文件并返回元数据
// 目录被多个发送者并发写入, 文件名用时间戳+随机后缀避免碰撞
func (s *AttachmentService) Store(file *multipart.FileHeader) (*StoredAttachment, error) {
	src, err := file.Open()
	if err != nil {
		return nil, errs.AttachmentFailure(err)
	}
	defer src.Close()

	name := s.buildName(file.Filename)
	dst, err := os.Create(filepath.Join(s.basePath, name))
	if err != nil {
		return nil, errs.AttachmentFailure(err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		// 半写入的文件不保留
		os.Remove(dst.Name())
		return nil, errs.AttachmentFailure(err)
	}

	info := &StoredAttachment{
		Name: name,
		Type: model.ClassifyAttachment(file.Filename),
		Size: written,
	}

	logger.L.Info("Attachment stored",
		zap.String("name", info.Name),
		zap.String("type", info.Type),
		zap.Int64("size", info.Size))

	return info, nil
}

// Path 返回附件的存储路径, 拒绝路径穿越
func (s *AttachmentService) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", errs.New(errs.CodeInvalidArgument, "invalid attachment name")
	}
	path := filepath.Join(s.basePath, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", errs.New(errs.CodeNotFound, "attachment not found")
		}
		return "", errs.AttachmentFailure(err)
	}
	return path, nil
}

// Remove 删除附件文件, 幂等: 文件不存在不算错误
func (s *AttachmentService) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(s.basePath, name))
	if err != nil && !os.IsNotExist(err) {
		return errs.AttachmentFailure(err)
	}
	return nil
}

func (s *AttachmentService) buildName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), suffix, ext)
}
