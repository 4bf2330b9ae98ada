// Package classify maps engine errors onto a stable taxonomy of error
// codes and builds sanitized responses for callers. Internal detail
// stays in the logs under a correlation ID; the caller sees the code,
// a safe message, and recovery suggestions.
package classify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	enginerrors "github.com/kyleking/report-engine/internal/errors"
	"github.com/kyleking/report-engine/internal/logging"
)

// Error codes form the stable public taxonomy
const (
	CodeValidationFailed     = "validation_failed"
	CodeTableNotFound        = "table_not_found"
	CodeColumnNotFound       = "column_not_found"
	CodePermissionDenied     = "permission_denied"
	CodeQueryExecutionFailed = "query_execution_failed"
	CodeExportFailed         = "export_failed"
	CodeTimeout              = "timeout"
	CodeMemoryLimit          = "memory_limit"
	CodeInvalidConfiguration = "invalid_configuration"
	CodeSchemaError          = "schema_error"
	CodeConnectionError      = "connection_error"
	CodeRateLimitExceeded    = "rate_limit_exceeded"
)

// Context carries request metadata for logging and correlation
type Context struct {
	Actor     string
	Tenant    string
	RequestID string
	Operation string
}

// Response is the sanitized error payload returned to callers
type Response struct {
	Code              string    `json:"code"`
	CorrelationID     string    `json:"correlation_id"`
	Message           string    `json:"message"`
	Details           []string  `json:"details,omitempty"`
	Suggestions       []string  `json:"suggestions,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	RetryAfterSeconds int       `json:"retry_after_seconds,omitempty"`
}

// typeCodes maps typed engine errors directly onto taxonomy codes
var typeCodes = map[enginerrors.ErrorType]string{
	enginerrors.ErrTypeValidation: CodeValidationFailed,
	enginerrors.ErrTypeCatalog:    CodeSchemaError,
	enginerrors.ErrTypeNotFound:   CodeTableNotFound,
	enginerrors.ErrTypeDatabase:   CodeQueryExecutionFailed,
	enginerrors.ErrTypeTimeout:    CodeTimeout,
	enginerrors.ErrTypeExport:     CodeExportFailed,
	enginerrors.ErrTypePermission: CodePermissionDenied,
	enginerrors.ErrTypeRateLimit:  CodeRateLimitExceeded,
	enginerrors.ErrTypeConfig:     CodeInvalidConfiguration,
	enginerrors.ErrTypeConnection: CodeConnectionError,
	enginerrors.ErrTypeMemory:     CodeMemoryLimit,
}

// keywordCodes catch untyped errors bubbling up from drivers and the
// filesystem; checked in order
var keywordCodes = []struct {
	keyword string
	code    string
}{
	{"column", CodeColumnNotFound},
	{"table", CodeTableNotFound},
	{"timeout", CodeTimeout},
	{"deadline exceeded", CodeTimeout},
	{"out of memory", CodeMemoryLimit},
	{"memory limit", CodeMemoryLimit},
	{"connection", CodeConnectionError},
	{"permission", CodePermissionDenied},
	{"access denied", CodePermissionDenied},
	{"rate limit", CodeRateLimitExceeded},
	{"too many requests", CodeRateLimitExceeded},
}

// messages are the safe caller-facing texts per code
var messages = map[string]string{
	CodeValidationFailed:     "The report configuration failed validation.",
	CodeTableNotFound:        "The requested table is not available for reporting.",
	CodeColumnNotFound:       "One or more requested columns do not exist.",
	CodePermissionDenied:     "You do not have permission to run this report.",
	CodeQueryExecutionFailed: "The report query could not be executed.",
	CodeExportFailed:         "The report could not be exported.",
	CodeTimeout:              "The report query took too long and was stopped.",
	CodeMemoryLimit:          "The report query used too much memory and was stopped.",
	CodeInvalidConfiguration: "The engine configuration is invalid.",
	CodeSchemaError:          "The schema catalog rejected the request.",
	CodeConnectionError:      "The reporting database is temporarily unreachable.",
	CodeRateLimitExceeded:    "Too many report requests; please slow down.",
}

var suggestions = map[string][]string{
	CodeValidationFailed:     {"Review the validation errors and correct the configuration."},
	CodeTableNotFound:        {"Check the table name against the catalog with the describe command."},
	CodeColumnNotFound:       {"List the table's columns with the describe command."},
	CodeTimeout:              {"Add conditions to narrow the result set.", "Lower the row limit."},
	CodeMemoryLimit:          {"Select fewer columns.", "Add conditions to narrow the result set."},
	CodeConnectionError:      {"Retry in a few seconds.", "Check that the database file is accessible."},
	CodeRateLimitExceeded:    {"Wait before submitting another report."},
	CodeQueryExecutionFailed: {"Retry the report; contact support with the correlation ID if it persists."},
	CodeExportFailed:         {"Check that the export directory is writable."},
}

// retryDelays gives recoverable codes a retry hint in seconds
var retryDelays = map[string]int{
	CodeTimeout:           10,
	CodeMemoryLimit:       30,
	CodeRateLimitExceeded: 60,
	CodeConnectionError:   5,
}

// Classify maps any error onto a taxonomy code. Typed engine errors win;
// untyped errors are sniffed by keyword; everything else is a query
// execution failure.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	errType := enginerrors.GetType(err)
	if code, ok := typeCodes[errType]; ok && errType != enginerrors.ErrTypeInternal {
		return code
	}

	lower := strings.ToLower(err.Error())
	for _, entry := range keywordCodes {
		if strings.Contains(lower, entry.keyword) {
			return entry.code
		}
	}

	return CodeQueryExecutionFailed
}

// Recoverable reports whether a retry may succeed for the code
func Recoverable(code string) bool {
	_, ok := retryDelays[code]

	return ok
}

// Handle classifies the error, logs the full detail under a fresh
// correlation ID, and returns the sanitized response. The raw error
// text never reaches the response.
func Handle(err error, reqCtx Context) Response {
	code := Classify(err)
	correlationID := uuid.New().String()

	logger := logging.GetLogger().WithFields(map[string]interface{}{
		"correlation_id": correlationID,
		"error_code":     code,
		"actor":          reqCtx.Actor,
		"tenant":         reqCtx.Tenant,
		"request_id":     reqCtx.RequestID,
		"operation":      reqCtx.Operation,
	})
	logger.ErrorWithErr("report request failed", err)

	response := Response{
		Code:          code,
		CorrelationID: correlationID,
		Message:       messages[code],
		Suggestions:   detailSuggestions(err, code),
		Timestamp:     time.Now().UTC(),
	}

	if response.Message == "" {
		response.Message = messages[CodeQueryExecutionFailed]
	}

	// Validation failures are safe to echo: they describe the caller's
	// own configuration, not engine internals.
	if code == CodeValidationFailed {
		var engineErr *enginerrors.Error
		if errors.As(err, &engineErr) {
			response.Details = []string{engineErr.Message}
		}
	}

	if delay, ok := retryDelays[code]; ok {
		response.RetryAfterSeconds = delay
	}

	return response
}

// detailSuggestions merges taxonomy suggestions with any carried on a
// typed engine error
func detailSuggestions(err error, code string) []string {
	merged := append([]string(nil), suggestions[code]...)

	var engineErr *enginerrors.Error
	if errors.As(err, &engineErr) {
		for _, s := range engineErr.Suggestions {
			if !contains(merged, s) {
				merged = append(merged, s)
			}
		}
	}

	return merged
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}

	return false
}

// FormatForLog renders a compact one-line description for log trails
func FormatForLog(err error, reqCtx Context) string {
	return fmt.Sprintf("op=%s actor=%s code=%s err=%v",
		reqCtx.Operation, reqCtx.Actor, Classify(err), err)
}
