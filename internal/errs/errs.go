package errs

import "fmt"

type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInvalidRecipient  Code = "INVALID_RECIPIENT"
	CodeNotFound          Code = "NOT_FOUND"
	CodeNotAMember        Code = "NOT_A_MEMBER"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeStorageFailure    Code = "STORAGE_FAILURE"
	CodeAttachmentFailure Code = "ATTACHMENT_FAILURE"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf 取出错误携带的业务码, 非AppError视为UNKNOWN
func CodeOf(err error) Code {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeUnknown
}

// 领域错误 — service/repository 层使用
var (
	ErrInvalidRecipient  = New(CodeInvalidRecipient, "sender and receiver must be different users")
	ErrReceiverNotFound  = New(CodeInvalidRecipient, "receiver does not exist")
	ErrMessageNotFound   = New(CodeNotFound, "message not found")
	ErrGroupNotFound     = New(CodeNotFound, "group not found")
	ErrUserNotFound      = New(CodeNotFound, "user not found")
	ErrNotAMember        = New(CodeNotAMember, "user is not a member of this group")
	ErrNotMessageSender  = New(CodePermissionDenied, "only the sender can modify this message")
	ErrNotReceiver       = New(CodePermissionDenied, "only the receiver can mark this message read")
	ErrEmptyGroupName    = New(CodeInvalidArgument, "group name cannot be empty")
	ErrBadAttachmentType = New(CodeInvalidArgument, "unsupported attachment type")
)

func StorageFailure(cause error) error {
	return Wrap(CodeStorageFailure, "persistence operation failed", cause)
}

func AttachmentFailure(cause error) error {
	return Wrap(CodeAttachmentFailure, "attachment file operation failed", cause)
}
