package backup

import (
	"errors"
)

var (
	ErrCopyNotFound             = errors.New("BACKUP_COPY_NOT_FOUND")
	ErrCopyInvalid              = errors.New("BACKUP_COPY_INVALID")
	ErrFileRequired             = errors.New("BACKUP_FILE_REQUIRED")
	ErrFileInvalidZip           = errors.New("BACKUP_FILE_INVALID_ZIP")
	ErrFileInvalidJSON          = errors.New("BACKUP_FILE_INVALID_JSON")
	ErrFileInvalidFormat        = errors.New("BACKUP_FILE_INVALID_FORMAT")
	ErrZipDataJSONNotFound      = errors.New("BACKUP_ZIP_DATA_JSON_NOT_FOUND")
	ErrSchemaVersionUnsupported = errors.New("SCHEMA_VERSION_UNSUPPORTED")
	ErrRestoreModeInvalid       = errors.New("RESTORE_MODE_INVALID")
	ErrProjectIDsRequired       = errors.New("PROJECT_IDS_REQUIRED_FOR_PARTIAL")
	ErrProjectIDsInvalid        = errors.New("PROJECT_IDS_INVALID")
	ErrProjectIDsEmpty          = errors.New("PROJECT_IDS_EMPTY")
)
