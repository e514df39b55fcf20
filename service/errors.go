package service

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrFileNotFound         = errors.New("file not found")
	ErrFileNotOwned         = errors.New("file does not belong to this conversation")
	ErrFileTooLarge         = errors.New("file too large")
	ErrFileTypeNotAllowed   = errors.New("file type not allowed")
	ErrEmptyFile            = errors.New("no file selected")
	ErrInvalidRole          = errors.New("role must be user or assistant")
)
