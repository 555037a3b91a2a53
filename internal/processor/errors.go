package processor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"resume-matcher/internal/storage"
)

// Kind 错误分类，决定重试策略和HTTP状态码
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindTransient  Kind = "transient"
	KindTerminal   Kind = "terminal"
	KindInternal   Kind = "internal"
)

// 定义基础错误类型
var (
	ErrInvalidType      = errors.New("unsupported content type")
	ErrTooLarge         = errors.New("file exceeds the maximum allowed size")
	ErrEmptyDocument    = errors.New("file is empty")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrActiveJobExists  = storage.ErrActiveJobExists
	ErrJobNotFound      = storage.ErrJobNotFound
	ErrTransientInfra   = errors.New("transient infrastructure failure")
	ErrTerminalAnalysis = errors.New("document analysis failed")
)

// PipelineError 包含详细错误信息的自定义错误
type PipelineError struct {
	JobID   string
	Op      string
	Kind    Kind
	BaseErr error
	Detail  string
}

func (e *PipelineError) Error() string {
	switch {
	case e.JobID != "" && e.Detail != "":
		return fmt.Sprintf("%s (操作:%s, 作业:%s): %s", e.BaseErr, e.Op, e.JobID, e.Detail)
	case e.JobID != "":
		return fmt.Sprintf("%s (操作:%s, 作业:%s)", e.BaseErr, e.Op, e.JobID)
	case e.Detail != "":
		return fmt.Sprintf("%s (操作:%s): %s", e.BaseErr, e.Op, e.Detail)
	default:
		return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
	}
}

func (e *PipelineError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数

func NewValidationError(base error, detail string) error {
	return &PipelineError{Op: "validate", Kind: KindValidation, BaseErr: base, Detail: detail}
}

func NewAuthError(detail string) error {
	return &PipelineError{Op: "authenticate", Kind: KindAuth, BaseErr: ErrUnauthenticated, Detail: detail}
}

func NewConflictError(ownerID string) error {
	return &PipelineError{Op: "submit", Kind: KindConflict, BaseErr: ErrActiveJobExists, Detail: "owner " + ownerID}
}

// Transient 将下游调用失败标记为可重试
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Op: op, Kind: KindTransient, BaseErr: fmt.Errorf("%w: %w", ErrTransientInfra, err)}
}

// Terminal 将失败标记为不可重试
func Terminal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Op: op, Kind: KindTerminal, BaseErr: err}
}

// KindOf 返回错误的分类。未分类的网络错误和超时视为 transient。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Kind != "" {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrTransientInfra):
		return KindTransient
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrTooLarge), errors.Is(err, ErrEmptyDocument):
		return KindValidation
	case errors.Is(err, ErrUnauthenticated):
		return KindAuth
	case errors.Is(err, ErrActiveJobExists):
		return KindConflict
	case errors.Is(err, ErrJobNotFound):
		return KindNotFound
	case errors.Is(err, ErrTerminalAnalysis):
		return KindTerminal
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindInternal
}

// IsTransient 错误是否允许重试
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// HTTPStatus 错误分类对应的HTTP状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
