package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"resume-matcher/internal/auth"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/storage/models"
	"resume-matcher/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/rs/zerolog"
)

// Submitter 登记一份简历并返回作业 ID，由 processor.Intake 实现
type Submitter interface {
	Submit(ctx context.Context, ownerID string, data []byte, contentType string, size int64) (string, error)
}

// JobReader 读取作业快照，由 storage.JobStore 实现
type JobReader interface {
	GetForOwner(ctx context.Context, jobID, ownerID string) (*models.AnalysisJob, error)
	LatestForOwner(ctx context.Context, ownerID string) (*models.AnalysisJob, error)
}

// ResumeHandler 简历上传和状态查询
type ResumeHandler struct {
	intake  Submitter
	jobs    JobReader
	maxSize int64
	logger  zerolog.Logger
}

// NewResumeHandler 创建简历处理器。maxSize 仅用于在读取前拒绝明显超限的文件。
func NewResumeHandler(intake Submitter, jobs JobReader, maxSize int64, logger zerolog.Logger) *ResumeHandler {
	return &ResumeHandler{
		intake:  intake,
		jobs:    jobs,
		maxSize: maxSize,
		logger:  logger,
	}
}

// ResumeUploadResponse 简历上传响应
type ResumeUploadResponse struct {
	JobID  string         `json:"job_id"`
	Status types.JobState `json:"status"`
}

// HandleUpload 处理简历上传
// POST /api/upload-resume
func (h *ResumeHandler) HandleUpload(ctx context.Context, c *app.RequestContext) {
	ownerID := auth.OwnerID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.H{"error": "missing file field"})
		return
	}

	data, err := readUpload(fileHeader, h.maxSize)
	if err != nil {
		if errors.Is(err, processor.ErrTooLarge) {
			writeError(c, processor.NewValidationError(processor.ErrTooLarge, fmt.Sprintf("%d bytes exceeds limit of %d", fileHeader.Size, h.maxSize)))
			return
		}
		h.logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("读取上传文件失败")
		c.JSON(http.StatusInternalServerError, utils.H{"error": "could not read upload"})
		return
	}

	contentType := uploadContentType(fileHeader)
	jobID, err := h.intake.Submit(ctx, ownerID, data, contentType, fileHeader.Size)
	if err != nil {
		if processor.HTTPStatus(err) == http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("owner_id", ownerID).Msg("简历登记失败")
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ResumeUploadResponse{JobID: jobID, Status: types.JobStatePending})
}

// HandleStatus 查询作业状态，未指定 job_id 时返回最近一次作业
// GET /api/resume-status[?job_id=]
func (h *ResumeHandler) HandleStatus(ctx context.Context, c *app.RequestContext) {
	ownerID := auth.OwnerID(c)
	jobID := strings.TrimSpace(c.Query("job_id"))

	var (
		job *models.AnalysisJob
		err error
	)
	if jobID != "" {
		job, err = h.jobs.GetForOwner(ctx, jobID, ownerID)
	} else {
		job, err = h.jobs.LatestForOwner(ctx, ownerID)
	}
	if err != nil {
		if processor.KindOf(err) == processor.KindNotFound {
			c.JSON(http.StatusNotFound, utils.H{"error": "no resume uploaded yet"})
			return
		}
		h.logger.Error().Err(err).Str("owner_id", ownerID).Msg("查询作业状态失败")
		c.JSON(http.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}

	view, err := storage.StatusView(job)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", job.JobID).Msg("解析作业结果失败")
		c.JSON(http.StatusInternalServerError, utils.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// readUpload 读取上传内容。比上限多读一个字节以判断是否超限。
func readUpload(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if maxSize > 0 && fh.Size > maxSize {
		return nil, processor.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if maxSize > 0 {
		r = io.LimitReader(f, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, processor.ErrTooLarge
	}
	return data, nil
}

// uploadContentType 优先使用 part 头中的类型，缺失或为通用二进制类型时按扩展名推断
func uploadContentType(fh *multipart.FileHeader) string {
	ct := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return ct
	}
	return storage.ContentTypeForFilename(fh.Filename)
}

// writeError 按错误分类返回状态码
func writeError(c *app.RequestContext, err error) {
	status := processor.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, utils.H{"error": msg})
}
