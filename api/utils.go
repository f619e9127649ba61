package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"socdash/core"
	"socdash/util"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// maxErrorMessageLength caps error text returned to clients
const maxErrorMessageLength = 500

var (
	connectionStringRegex = regexp.MustCompile(`(?:clickhouse|redis|rediss|tcp|https?)://[^\s"']+`)
	filePathRegex         = regexp.MustCompile(`(?:[A-Za-z]:\\|/)(?:[^\\/:*?"<>|\s]+[\\/])+[^\\/:*?"<>|\s]+`)
	privateIPRegexes      = []*regexp.Regexp{
		regexp.MustCompile(`\b(?:10|127)(?:\.\d{1,3}){3}:\d{1,5}\b`),
		regexp.MustCompile(`\b172\.(?:1[6-9]|2[0-9]|3[01])(?:\.\d{1,3}){2}:\d{1,5}\b`),
		regexp.MustCompile(`\b192\.168(?:\.\d{1,3}){2}:\d{1,5}\b`),
	}
	stackTraceRegex   = regexp.MustCompile(`(?m)^goroutine \d+.*$`)
	controlCharsRegex = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// sanitizeErrorMessage removes infrastructure details and credentials from
// messages sent to clients. Alert IPs are kept; only host:port pairs of
// private services are hidden.
func sanitizeErrorMessage(message string) string {
	message = util.SanitizeString(message)
	message = connectionStringRegex.ReplaceAllString(message, "[CONNECTION]")
	message = filePathRegex.ReplaceAllString(message, "[FILE_PATH]")
	for _, re := range privateIPRegexes {
		message = re.ReplaceAllString(message, "[INTERNAL_ADDRESS]")
	}
	message = stackTraceRegex.ReplaceAllString(message, "[STACK_TRACE]")

	if len(message) > maxErrorMessageLength {
		message = util.Truncate(message, maxErrorMessageLength-3) + "..."
	}
	return message
}

// sanitizeLogMessage strips control characters so user input cannot forge log lines
func sanitizeLogMessage(message string) string {
	message = strings.ReplaceAll(message, "\n", "\\n")
	message = strings.ReplaceAll(message, "\r", "\\r")
	message = strings.ReplaceAll(message, "\t", "\\t")
	message = controlCharsRegex.ReplaceAllString(message, "")
	return util.SanitizeString(message)
}

// writeError writes a JSON error response and logs the full error
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	if logger != nil {
		fields := []interface{}{"status_code", statusCode}
		if err != nil {
			fields = append(fields, "error", util.SanitizeError(err))
		}
		if statusCode >= http.StatusInternalServerError {
			logger.Errorw(message, fields...)
		} else {
			logger.Warnw(message, fields...)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Success: false,
		Error:   sanitizeErrorMessage(message),
	})
}

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownTool), errors.Is(err, core.ErrAlertNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotConfigured), errors.Is(err, core.ErrCircuitBreakerOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError reports err with the status its type implies. Client
// errors carry their own message; server errors use the generic one.
func (a *API) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusForError(err)
	if status < http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		message = err.Error()
	}
	writeError(w, status, message, err, a.logger)
}

// respondJSON writes a JSON response with proper error handling
func (a *API) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

// decodeJSONBodyWithLimit decodes a JSON request body with a size limit and
// writes the error response itself on failure
func (a *API) decodeJSONBodyWithLimit(w http.ResponseWriter, r *http.Request, dst interface{}, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON syntax at byte offset %d", syntaxError.Offset), err, a.logger)
		case errors.As(err, &unmarshalTypeError):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid type for field '%s': expected %s", unmarshalTypeError.Field, unmarshalTypeError.Type), err, a.logger)
		case errors.As(err, &maxBytesError):
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err, a.logger)
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "Request body is empty", err, a.logger)
		case strings.HasPrefix(err.Error(), "json: unknown field"):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("JSON contains %s", strings.TrimPrefix(err.Error(), "json: ")), err, a.logger)
		default:
			writeError(w, http.StatusBadRequest, "Invalid JSON body", err, a.logger)
		}
		return err
	}

	return nil
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs struct tag validation and writes a 400 describing the
// first failing field
func (a *API) validateRequest(w http.ResponseWriter, req interface{}) error {
	err := a.validate.Struct(req)
	if err == nil {
		return nil
	}

	message := "Invalid request"
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		message = describeValidationError(validationErrors[0])
	}
	writeError(w, http.StatusBadRequest, message, err, a.logger)
	return err
}

func describeValidationError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
