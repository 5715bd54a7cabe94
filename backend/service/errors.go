package service

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownSlot     = errors.New("unknown file slot")
	ErrUnknownField    = errors.New("unknown field")
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrUploadFailed    = errors.New("upload failed")
	ErrSlotBusy        = errors.New("upload already in progress for slot")
	ErrMissingFiles    = errors.New("required files missing")
	ErrInvalidFields   = errors.New("required fields invalid")
	ErrSubmitInFlight  = errors.New("submission already in progress")
	ErrAlreadySent     = errors.New("submission already sent")
	ErrSubmitFailed    = errors.New("submission failed")
	ErrMissingAPIKey   = errors.New("missing API key")
	ErrDeleteFailed    = errors.New("failed to delete file")
)
