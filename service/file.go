package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/KodaTao/ai-chat/config"
	"github.com/KodaTao/ai-chat/model"
)

const maxFilenameLen = 255

// FileService 文件服务：磁盘存储 + 元数据
type FileService struct {
	db      *gorm.DB
	dir     string
	maxSize int64
	allowed map[string]struct{}
}

func NewFileService(db *gorm.DB, cfg config.UploadConfig) *FileService {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &FileService{
		db:      db,
		dir:     cfg.Dir,
		maxSize: cfg.MaxSize,
		allowed: allowed,
	}
}

// MaxSize 单个文件的大小上限（字节）
func (s *FileService) MaxSize() int64 { return s.maxSize }

// AllowedFile 检查扩展名是否在白名单内
func (s *FileService) AllowedFile(filename string) bool {
	ext := extension(filename)
	if ext == "" {
		return false
	}
	_, ok := s.allowed[ext]
	return ok
}

// Save 校验并保存上传文件，declaredSize 为客户端声明的大小（未知时传 -1）
func (s *FileService) Save(ctx context.Context, conversationID *uint, originalName string, declaredSize int64, r io.Reader) (*model.UploadedFile, error) {
	name := sanitizeFilename(originalName)
	if name == "" {
		return nil, ErrEmptyFile
	}
	if !s.AllowedFile(name) {
		return nil, ErrFileTypeNotAllowed
	}
	if declaredSize > s.maxSize {
		return nil, ErrFileTooLarge
	}

	if conversationID != nil {
		var conversation model.Conversation
		err := s.db.WithContext(ctx).Select("id").First(&conversation, *conversationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	stored := strings.ReplaceAll(uuid.NewString(), "-", "") + "." + extension(name)
	path := filepath.Join(s.dir, stored)

	written, err := writeLimited(path, r, s.maxSize)
	if err != nil {
		return nil, err
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}

	f := &model.UploadedFile{
		Filename:         stored,
		OriginalFilename: name,
		FileSize:         written,
		Filepath:         path,
		ContentType:      contentType,
		ConversationID:   conversationID,
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, multierr.Append(err, removeStored(path))
	}
	return f, nil
}

// List 列出文件，conversationID 为空时返回全部
func (s *FileService) List(ctx context.Context, conversationID *uint) ([]model.UploadedFile, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if conversationID != nil {
		q = q.Where("conversation_id = ?", *conversationID)
	}
	files := make([]model.UploadedFile, 0)
	err := q.Find(&files).Error
	return files, err
}

// GetByFilename 按存储文件名查找，不直接拼接路径
func (s *FileService) GetByFilename(ctx context.Context, filename string) (*model.UploadedFile, error) {
	var f model.UploadedFile
	err := s.db.WithContext(ctx).Where("filename = ?", filename).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete 删除会话下的文件，不属于该会话时返回 ErrFileNotOwned
func (s *FileService) Delete(ctx context.Context, conversationID, fileID uint) (*model.UploadedFile, error) {
	var f model.UploadedFile
	err := s.db.WithContext(ctx).First(&f, fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	if f.ConversationID == nil || *f.ConversationID != conversationID {
		return nil, ErrFileNotOwned
	}

	if err := s.db.WithContext(ctx).Delete(&f).Error; err != nil {
		return nil, err
	}
	return &f, s.RemoveStored([]model.UploadedFile{f})
}

// RemoveStored 删除已无记录的文件内容
func (s *FileService) RemoveStored(files []model.UploadedFile) error {
	var err error
	for _, f := range files {
		err = multierr.Append(err, removeStored(f.Filepath))
	}
	return err
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	if size <= 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f%s", value, units[i])
}

func writeLimited(path string, r io.Reader, maxSize int64) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	written, copyErr := io.Copy(out, io.LimitReader(r, maxSize+1))
	closeErr := out.Close()
	if err := multierr.Append(copyErr, closeErr); err != nil {
		return 0, multierr.Append(fmt.Errorf("write %s: %w", path, err), removeStored(path))
	}
	if written > maxSize {
		if err := removeStored(path); err != nil {
			return 0, multierr.Append(ErrFileTooLarge, err)
		}
		return 0, ErrFileTooLarge
	}
	return written, nil
}

func removeStored(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func sanitizeFilename(raw string) string {
	name := filepath.Base(strings.TrimSpace(strings.ReplaceAll(raw, "\\", "/")))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	if len(name) > maxFilenameLen {
		// 保留扩展名，从 rune 边界截断
		cut := len(name) - maxFilenameLen
		for cut < len(name) && !utf8.RuneStart(name[cut]) {
			cut++
		}
		name = name[cut:]
	}
	return name
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
