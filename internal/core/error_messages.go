package core

// # Error Codes Reference
//
// This file maps technical errors to user-facing messages with a code that
// operators can quote to support.
//
// Known sentinel and typed errors are matched first with errors.Is/errors.As.
// Anything else is matched case-insensitively against substring patterns;
// the first match wins.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate value: A record with this value already exists
//	DB002 - Connection refused: Unable to connect to database
//	DB003 - Connection reset: Database connection was interrupted
//	DB004 - Deadlock: Database was busy with conflicting operations
//	DB005 - Database locked: SQLite file is busy
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid record: Product fields break the catalog limits
//	VAL002 - Required field: Required field is empty
//	VAL003 - Registry unavailable: Existence checks are not configured
//	VAL004 - Invalid request: A request body failed validation
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Invalid spreadsheet
//	FILE003 - Invalid XML
//	FILE004 - No file
//	FILE005 - No products found
//	FILE006 - Unsupported file type
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Upload not found
//	UPL002 - System busy: Too many uploads in progress
//	UPL003 - Upload locked: Another worker is processing this upload
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Batch Errors (BAT001-BAT099)
//
//	BAT001 - Batch not found
//	BAT002 - Nothing to submit
//
// # ERP Errors (ERP001-ERP099)
//
//	ERP001 - ERP timeout
//	ERP002 - ERP connection failed
//	ERP003 - ERP rejected the request
//	ERP004 - ERP integration not configured
//
// # Rate Limiting (RATE001) and Default (ERR000)
//
// When a user reports ERR000, check the application logs for the original
// technical error.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/prodcheck/internal/erp"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgNotFound = UserMessage{
		Message: "The requested item was not found",
		Action:  "Check the identifier and try again",
		Code:    "UPL001",
	}
	msgBatchNotFound = UserMessage{
		Message: "Batch not found",
		Action:  "Check the batch code and try again",
		Code:    "BAT001",
	}
	msgNothingToSubmit = UserMessage{
		Message: "The batch has no valid products waiting to be sent",
		Action:  "Validate the batch before submitting it",
		Code:    "BAT002",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the catalog into smaller files",
		Code:    "FILE001",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a spreadsheet or XML file to upload",
		Code:    "FILE004",
	}
	msgNoRecords = UserMessage{
		Message: "No products were found in the file",
		Action:  "Make sure every product has a code (and a description in XML files)",
		Code:    "FILE005",
	}
	msgUnsupportedType = UserMessage{
		Message: "File type is not supported",
		Action:  "Upload an .xlsx spreadsheet or an .xml file",
		Code:    "FILE006",
	}
	msgTooManyUploads = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgLocked = UserMessage{
		Message: "This upload is already being processed",
		Action:  "Wait for the current run to finish",
		Code:    "UPL003",
	}
	msgERPTimeout = UserMessage{
		Message: "The ERP did not answer in time",
		Action:  "Nothing was marked as sent. Try again in a few minutes",
		Code:    "ERP001",
	}
	msgERPConnection = UserMessage{
		Message: "Could not connect to the ERP",
		Action:  "Nothing was marked as sent. Check the ERP is reachable and try again",
		Code:    "ERP002",
	}
	msgERPRejected = UserMessage{
		Message: "The ERP rejected the request",
		Action:  "Review the ERP response and correct the order",
		Code:    "ERP003",
	}
	msgERPDisabled = UserMessage{
		Message: "ERP integration is not configured",
		Action:  "Set ERP_BASE_URL and restart the service",
		Code:    "ERP004",
	}
	msgInvalidRequest = UserMessage{
		Message: "The request is missing or has invalid fields",
		Action:  "Check the highlighted fields and send the request again",
		Code:    "VAL004",
	}
	msgRegistryUnavailable = UserMessage{
		Message: "Product registry checks are not configured",
		Action:  "Set ERP_BASE_URL and restart the service",
		Code:    "VAL003",
	}
)

// errorTarget matches a sentinel with errors.Is.
type errorTarget struct {
	target error
	msg    UserMessage
}

// errorTargets are checked before patterns. Order matters: ErrNotFound is
// last so more specific sentinels win.
var errorTargets = []errorTarget{
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrNoFile, msgNoFile},
	{ErrNoRecords, msgNoRecords},
	{ErrUnsupportedFileType, msgUnsupportedType},
	{ErrTooManyUploads, msgTooManyUploads},
	{ErrLocked, msgLocked},
	{ErrNothingToSubmit, msgNothingToSubmit},
	{ErrERPDisabled, msgERPDisabled},
	{ErrRegistryUnavailable, msgRegistryUnavailable},
	{ErrInvalidRequest, msgInvalidRequest},
	{erp.ErrTimeout, msgERPTimeout},
	{erp.ErrConnection, msgERPConnection},
	{ErrNotFound, msgNotFound},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains; specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Errors (DB001-DB005)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this value already exists",
			Action:  "Check the file for duplicate entries",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A record with this value already exists",
			Action:  "Check the file for duplicate entries",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database is busy",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL002)
	// =========================================================================
	{
		pattern: "invalid record",
		msg: UserMessage{
			Message: "Some product fields are invalid or too long",
			Action:  "Correct the listed fields and upload again",
			Code:    "VAL001",
		},
	},
	{
		pattern: "is required",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Fill in all required fields",
			Code:    "VAL002",
		},
	},

	// =========================================================================
	// File Errors (FILE002-FILE003)
	// =========================================================================
	{
		pattern: "open spreadsheet",
		msg: UserMessage{
			Message: "File is not a valid spreadsheet",
			Action:  "Save the file as .xlsx or .xls and upload again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "spreadsheet has no sheets",
		msg: UserMessage{
			Message: "File is not a valid spreadsheet",
			Action:  "Save the file as .xlsx or .xls and upload again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "parse xml",
		msg: UserMessage{
			Message: "File is not valid XML",
			Action:  "Check that the XML is well formed",
			Code:    "FILE003",
		},
	},
	{
		pattern: "xml document has no root",
		msg: UserMessage{
			Message: "File is not valid XML",
			Action:  "Check that the XML is well formed",
			Code:    "FILE003",
		},
	},
	{
		pattern: "unsupported xml encoding",
		msg: UserMessage{
			Message: "XML file uses an unsupported encoding",
			Action:  "Save the file as UTF-8 or ISO-8859-1",
			Code:    "FILE003",
		},
	},

	// =========================================================================
	// Upload Errors (UPL004-UPL005)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinels and *erp.APIError are matched first, then substring patterns.
//
// Example:
//
//	msg := MapError(fmt.Errorf("submit batch: %w", erp.ErrTimeout))
//	// msg.Code == "ERP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var apiErr *erp.APIError
	if errors.As(err, &apiErr) {
		return msgERPRejected
	}
	for _, et := range errorTargets {
		if errors.Is(err, et.target) {
			if et.target == ErrNotFound && strings.Contains(strings.ToLower(err.Error()), "batch") {
				return msgBatchNotFound
			}
			return et.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
