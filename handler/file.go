package handler

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/ai-chat/model"
	"github.com/KodaTao/ai-chat/service"
)

// multipart 头部和其他表单字段预留的空间
const multipartOverhead = 1 << 20

type fileResponse struct {
	ID               uint      `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	SizeHuman        string    `json:"size_human"`
	ContentType      string    `json:"content_type"`
	ConversationID   *uint     `json:"conversation_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func newFileResponse(f *model.UploadedFile) fileResponse {
	return fileResponse{
		ID:               f.ID,
		Filename:         f.Filename,
		OriginalFilename: f.OriginalFilename,
		FileSize:         f.FileSize,
		SizeHuman:        service.FormatSize(f.FileSize),
		ContentType:      f.ContentType,
		ConversationID:   f.ConversationID,
		CreatedAt:        f.CreatedAt,
	}
}

// FileHandler 文件上传/下载接口
type FileHandler struct {
	Files  *service.FileService
	Hub    *Hub
	Logger *zap.Logger
}

// Upload POST /api/upload，conversation_id 为可选表单字段
func (h *FileHandler) Upload(c *gin.Context) {
	if !h.limitBody(c) {
		return
	}

	var conversationID *uint
	if raw := c.PostForm("conversation_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			respondError(c, http.StatusBadRequest, "invalid conversation_id")
			return
		}
		v := uint(id)
		conversationID = &v
	}
	h.save(c, conversationID)
}

// UploadToConversation POST /api/conversations/:id/files
func (h *FileHandler) UploadToConversation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !h.limitBody(c) {
		return
	}
	h.save(c, &id)
}

func (h *FileHandler) save(c *gin.Context, conversationID *uint) {
	header, err := c.FormFile("file")
	if err != nil {
		if h.tooLarge(c, err) {
			return
		}
		respondError(c, http.StatusBadRequest, "no file part in the request")
		return
	}
	if header.Filename == "" {
		respondServiceError(c, h.Logger, service.ErrEmptyFile)
		return
	}

	src, err := header.Open()
	if err != nil {
		respondServiceError(c, h.Logger, err)
		return
	}
	defer src.Close()

	f, err := h.Files.Save(c.Request.Context(), conversationID, header.Filename, header.Size, src)
	if err != nil {
		respondServiceError(c, h.Logger, err)
		return
	}

	h.Logger.Info("file uploaded",
		zap.String("filename", f.Filename),
		zap.String("original", f.OriginalFilename),
		zap.Int64("size", f.FileSize),
	)
	resp := newFileResponse(f)
	h.Hub.Publish(EventFileUploaded, resp)
	respondOK(c, http.StatusCreated, resp)
}

// List GET /api/files?conversation_id=
func (h *FileHandler) List(c *gin.Context) {
	var conversationID *uint
	if raw := c.Query("conversation_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			respondError(c, http.StatusBadRequest, "invalid conversation_id")
			return
		}
		v := uint(id)
		conversationID = &v
	}

	files, err := h.Files.List(c.Request.Context(), conversationID)
	if err != nil {
		respondServiceError(c, h.Logger, err)
		return
	}
	out := make([]fileResponse, 0, len(files))
	for i := range files {
		out = append(out, newFileResponse(&files[i]))
	}
	respondOK(c, http.StatusOK, out)
}

// Download GET /api/files/:filename，只按数据库记录取文件
func (h *FileHandler) Download(c *gin.Context) {
	f, err := h.Files.GetByFilename(c.Request.Context(), c.Param("filename"))
	if err != nil {
		respondServiceError(c, h.Logger, err)
		return
	}
	// 记录还在但磁盘文件已丢失
	if _, err := os.Stat(f.Filepath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.Logger.Warn("stat stored file", zap.String("path", f.Filepath), zap.Error(err))
		}
		respondServiceError(c, h.Logger, service.ErrFileNotFound)
		return
	}
	if f.ContentType != "" {
		c.Header("Content-Type", f.ContentType)
	}
	c.FileAttachment(f.Filepath, f.OriginalFilename)
}

// Delete DELETE /api/conversations/:id/files/:file_id
func (h *FileHandler) Delete(c *gin.Context) {
	conversationID, ok := parseID(c, "id")
	if !ok {
		return
	}
	fileID, ok := parseID(c, "file_id")
	if !ok {
		return
	}

	f, err := h.Files.Delete(c.Request.Context(), conversationID, fileID)
	if f == nil && err != nil {
		respondServiceError(c, h.Logger, err)
		return
	}
	if err != nil {
		// 记录已删，磁盘文件残留
		h.Logger.Warn("remove stored file", zap.String("path", f.Filepath), zap.Error(err))
	}

	h.Hub.Publish(EventFileDeleted, gin.H{"id": f.ID, "conversation_id": conversationID})
	respondOK(c, http.StatusOK, gin.H{"id": f.ID})
}

// limitBody 声明长度超限直接拒绝，否则在读取时截断
func (h *FileHandler) limitBody(c *gin.Context) bool {
	limit := h.Files.MaxSize() + multipartOverhead
	if c.Request.ContentLength > limit {
		respondServiceError(c, h.Logger, service.ErrFileTooLarge)
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	return true
}

func (h *FileHandler) tooLarge(c *gin.Context, err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		respondServiceError(c, h.Logger, service.ErrFileTooLarge)
		return true
	}
	return false
}
