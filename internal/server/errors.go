package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/redress/internal/account/domain"
	approvaldomain "github.com/smallbiznis/redress/internal/approval/domain"
	"github.com/smallbiznis/redress/internal/auth"
	"github.com/smallbiznis/redress/internal/authorization"
	casedomain "github.com/smallbiznis/redress/internal/casefile/domain"
	chatdomain "github.com/smallbiznis/redress/internal/chat/domain"
	creditdomain "github.com/smallbiznis/redress/internal/credit/domain"
	dispatchdomain "github.com/smallbiznis/redress/internal/dispatch/domain"
	evidencedomain "github.com/smallbiznis/redress/internal/evidence/domain"
	letterdomain "github.com/smallbiznis/redress/internal/letter/domain"
	"github.com/smallbiznis/redress/internal/llm"
	paymentdomain "github.com/smallbiznis/redress/internal/payment/domain"
	pipelinedomain "github.com/smallbiznis/redress/internal/pipeline/domain"
	"github.com/smallbiznis/redress/internal/ratelimit"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		var denied *ratelimit.Denied
		if errors.As(lastErr.Err, &denied) && denied.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(denied.RetryAfter.Seconds()))))
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case isNoCreditsError(err):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "no_credits",
			Message: "no credits remaining",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isSignatureError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "invalid_signature",
			Message: "invalid signature",
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isUnauthorizedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, casedomain.ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded on the request log line.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		code = vErr.Errors[0].Code
	} else if payload.Type != "internal_error" {
		code = rootCode(err)
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNoCreditsError(err error) bool {
	return errors.Is(err, pipelinedomain.ErrNoCredits) ||
		errors.Is(err, creditdomain.ErrInsufficientCredits)
}

func isSignatureError(err error) bool {
	return errors.Is(err, approvaldomain.ErrInvalidSignature) ||
		errors.Is(err, approvaldomain.ErrStaleTimestamp) ||
		errors.Is(err, paymentdomain.ErrInvalidSignature)
}

func isUnauthorizedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidSubject),
		errors.Is(err, auth.ErrNotConfigured):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	if errors.Is(err, ErrInvalidRequest) {
		return true
	}
	for _, target := range validationSentinels {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationSentinels = []error{
	accountdomain.ErrInvalidEmail,
	accountdomain.ErrInvalidRole,
	accountdomain.ErrInvalidCredits,
	accountdomain.ErrFieldTooLong,
	casedomain.ErrInvalidComplaint,
	casedomain.ErrInvalidCompany,
	casedomain.ErrInvalidDomain,
	casedomain.ErrInvalidAmount,
	casedomain.ErrInvalidCurrency,
	casedomain.ErrInvalidOutcome,
	casedomain.ErrInvalidNote,
	casedomain.ErrInvalidPageToken,
	creditdomain.ErrInvalidAmount,
	creditdomain.ErrInvalidKind,
	creditdomain.ErrInvalidIdempotencyKey,
	creditdomain.ErrInvalidPageToken,
	evidencedomain.ErrInvalidFileName,
	evidencedomain.ErrInvalidAnalysis,
	evidencedomain.ErrTooMuchEvidence,
	letterdomain.ErrInvalidLetterType,
	letterdomain.ErrInvalidFeedback,
	dispatchdomain.ErrInvalidRecipient,
	approvaldomain.ErrInvalidAction,
	approvaldomain.ErrInvalidActor,
	chatdomain.ErrNoMessages,
	chatdomain.ErrTooManyMessages,
	chatdomain.ErrInvalidRole,
	chatdomain.ErrInvalidContent,
	chatdomain.ErrLastNotUser,
	paymentdomain.ErrInvalidProvider,
	paymentdomain.ErrInvalidPayload,
	paymentdomain.ErrInvalidEvent,
	paymentdomain.ErrInvalidAccount,
	paymentdomain.ErrUnknownPrice,
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, casedomain.ErrInvalidTransition),
		errors.Is(err, casedomain.ErrNotEditable),
		errors.Is(err, pipelinedomain.ErrRunInProgress),
		errors.Is(err, pipelinedomain.ErrNotRetryable),
		errors.Is(err, pipelinedomain.ErrNotFollowable),
		errors.Is(err, approvaldomain.ErrAlreadyDecided),
		errors.Is(err, dispatchdomain.ErrNotSendable),
		errors.Is(err, accountdomain.ErrEmailTaken):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, ErrConflict) {
		return "conflict"
	}
	return strings.ReplaceAll(rootCode(err), "_", " ")
}

// rootCode returns the sentinel text at the end of a wrap chain.
func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, casedomain.ErrNotFound),
		errors.Is(err, letterdomain.ErrNotFound),
		errors.Is(err, dispatchdomain.ErrNotFound),
		errors.Is(err, approvaldomain.ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, creditdomain.ErrAccountNotFound),
		errors.Is(err, paymentdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isUnavailableError(err error) bool {
	switch {
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, pipelinedomain.ErrResearchUnavailable),
		errors.Is(err, creditdomain.ErrLedgerUnavailable),
		errors.Is(err, dispatchdomain.ErrDeliveryFailed),
		errors.Is(err, approvaldomain.ErrSigningNotConfigured),
		errors.Is(err, llm.ErrNotConfigured),
		llm.IsProviderError(err):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return rootCode(err)
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "too_much_evidence":
		return "too many evidence items"
	case "too_many_messages":
		return "too many messages"
	default:
		return "invalid value"
	}
}
