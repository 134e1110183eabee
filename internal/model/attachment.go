package model

import "path/filepath"
import "strings"

// 附件类型是封闭枚举, 带附件的消息必须有其中之一
const (
	AttachmentImage    = "image"
	AttachmentVideo    = "video"
	AttachmentPDF      = "pdf"
	AttachmentDocument = "document"
	AttachmentArchive  = "archive"
	AttachmentFile     = "file"
)

func ValidAttachmentType(t string) bool {
	switch t {
	case AttachmentImage, AttachmentVideo, AttachmentPDF, AttachmentDocument, AttachmentArchive, AttachmentFile:
		return true
	}
	return false
}

// ClassifyAttachment 根据文件扩展名归类到封闭枚举
func ClassifyAttachment(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return AttachmentImage
	case ".mp4", ".avi", ".mov", ".mkv":
		return AttachmentVideo
	case ".pdf":
		return AttachmentPDF
	case ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt", ".md":
		return AttachmentDocument
	case ".zip", ".rar", ".7z", ".tar", ".gz":
		return AttachmentArchive
	default:
		return AttachmentFile
	}
}
