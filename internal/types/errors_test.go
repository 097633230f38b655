package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestAppErrorImplementsError verifies that *AppError satisfies the error interface.
func TestAppErrorImplementsError(t *testing.T) {
	var _ error = (*AppError)(nil)
}

// TestAppErrorErrorFormat verifies the Error() method produces the "code: message" format.
func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidWeekStart,
		Message: "week_start must be a YYYY-MM-DD date",
	}

	expected := "validation_invalid_week_start: week_start must be a YYYY-MM-DD date"
	if appErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", appErr.Error(), expected)
	}
}

// TestAppErrorUnwrap verifies the error chain support via Unwrap.
func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("database connection failed")
	appErr := &AppError{
		Code:    ErrCodeInternalDB,
		Message: "failed to query plans",
		Err:     underlying,
	}

	if appErr.Unwrap() != underlying {
		t.Errorf("Unwrap() returned unexpected error: got %v, want %v", appErr.Unwrap(), underlying)
	}
}

// TestAppErrorUnwrapNil verifies Unwrap returns nil when no underlying error exists.
func TestAppErrorUnwrapNil(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeNotFoundPlan,
		Message: "plan not found",
	}

	if appErr.Unwrap() != nil {
		t.Errorf("Unwrap() should return nil when Err is nil, got %v", appErr.Unwrap())
	}
}

// TestAppErrorErrorsAs verifies that errors.As can extract AppError from an error chain.
func TestAppErrorErrorsAs(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeAuthTokenExpired,
		Message: "token has expired",
	}
	wrappedErr := fmt.Errorf("handler failed: %w", appErr)

	var extracted *AppError
	if !errors.As(wrappedErr, &extracted) {
		t.Fatal("errors.As failed to extract *AppError from wrapped error")
	}
	if extracted.Code != ErrCodeAuthTokenExpired {
		t.Errorf("extracted Code = %s, want %s", extracted.Code, ErrCodeAuthTokenExpired)
	}
}

// TestErrorCodeHTTPStatus verifies the code-to-status mapping for every error class.
func TestErrorCodeHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidWeekStart, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthInvalidCreds, http.StatusUnauthorized},
		{ErrCodeSubscriptionInactive, http.StatusPaymentRequired},
		{ErrCodeStyleNotAllowed, http.StatusForbidden},
		{ErrCodeNotFoundUser, http.StatusNotFound},
		{ErrCodeNotFoundPlan, http.StatusNotFound},
		{ErrCodeWeeklyLimitReached, http.StatusTooManyRequests},
		{ErrCodeUpstreamGeneration, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusBadGateway},
		{ErrCodePlanParseFailed, http.StatusInternalServerError},
		{ErrCodePlanMissingRecipes, http.StatusInternalServerError},
		{ErrCodePersistFailed, http.StatusInternalServerError},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrCodeInternalUnexpected, http.StatusInternalServerError},
		{ErrorCode("something_never_seen"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

// TestAppErrorWithDetails verifies details are merged into a copy, leaving the original untouched.
func TestAppErrorWithDetails(t *testing.T) {
	original := NewAppErrorWithDetails(
		ErrCodeWeeklyLimitReached,
		"weekly generation limit reached",
		nil,
		map[string]any{"used": 3},
	)

	enriched := original.WithDetails(map[string]any{"limit": 3, "used": 4})

	if enriched.Details["used"] != 4 || enriched.Details["limit"] != 3 {
		t.Errorf("enriched details = %v, want used=4 limit=3", enriched.Details)
	}
	if original.Details["used"] != 3 {
		t.Errorf("original details mutated: %v", original.Details)
	}
	if _, ok := original.Details["limit"]; ok {
		t.Error("original details gained a key from WithDetails")
	}
	if enriched.Code != original.Code || enriched.Message != original.Message {
		t.Error("WithDetails must preserve code and message")
	}
}

// TestNewAppError verifies the standard constructor wires all fields.
func TestNewAppError(t *testing.T) {
	underlying := errors.New("boom")
	appErr := NewAppError(ErrCodeUpstreamGeneration, "upstream call failed", underlying)

	if appErr.Code != ErrCodeUpstreamGeneration {
		t.Errorf("Code = %s", appErr.Code)
	}
	if appErr.Message != "upstream call failed" {
		t.Errorf("Message = %q", appErr.Message)
	}
	if !errors.Is(appErr, underlying) {
		t.Error("errors.Is should reach the wrapped error")
	}
	if appErr.HTTPStatus() != http.StatusBadGateway {
		t.Errorf("HTTPStatus() = %d, want 502", appErr.HTTPStatus())
	}
}
