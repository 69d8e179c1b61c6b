package sheets

import (
	"errors"
)

var (
	ErrProjectNotFound     = errors.New("PROJECT_NOT_FOUND")
	ErrSheetNotPublished   = errors.New("SHEET_NOT_PUBLISHED")
	ErrSheetFormatInvalid  = errors.New("SHEET_FORMAT_INVALID")
	ErrPreviewTokenInvalid = errors.New("PREVIEW_TOKEN_INVALID")
	ErrModeInvalid         = errors.New("SHEETS_MODE_INVALID")
	ErrExternalUnavailable = errors.New("EXTERNAL_UNAVAILABLE")

	ErrAuthRequired       = errors.New("GOOGLE_AUTH_REQUIRED")
	ErrRealModeRequired   = errors.New("GOOGLE_AUTH_REAL_MODE_REQUIRED")
	ErrOAuthNotConfigured = errors.New("GOOGLE_OAUTH_NOT_CONFIGURED")
	ErrOAuthStateInvalid  = errors.New("GOOGLE_OAUTH_STATE_INVALID")
)
