package core

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"mealweek/internal/types"
)

// Validator wraps go-playground/validator with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator and registers custom validation tags.
//
// Custom tags:
//   - weekstart: the field must be a YYYY-MM-DD date string.
func NewValidator() (*Validator, error) {
	v := validator.New()

	if err := v.RegisterValidation("weekstart", validateWeekStart); err != nil {
		return nil, fmt.Errorf("registering weekstart tag: %w", err)
	}

	return &Validator{validate: v}, nil
}

// ValidateStruct validates the struct against its tags, returning a
// validation AppError naming the first offending field.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			fmt.Sprintf("field %q failed validation rule %q", fe.Field(), fe.Tag()),
			err,
			map[string]any{"field": fe.Field(), "rule": fe.Tag()},
		)
	}

	return types.NewAppError(types.ErrCodeValidationMissingField, "request validation failed", err)
}

// validateWeekStart implements the weekstart tag.
func validateWeekStart(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != len(types.WeekStartLayout) {
		return false
	}
	_, err := time.Parse(types.WeekStartLayout, value)
	return err == nil
}
