package core

import (
	"errors"
	"log/slog"
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"

	"crowdrisk/internal/types"
)

var languageCodePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)

// ValidationError is one failed field rule.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validator wraps go-playground/validator with the API's custom tags:
//
//	language_code - empty or a two-letter code
//
// Field names in errors come from the `query` struct tag when present.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator and registers the custom tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("language_code", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || languageCodePattern.MatchString(s)
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s and returns a validation AppError whose code is
// derived from the first failing rule. All failures are listed in
// Details["validation_errors"].
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("unexpected validator failure", "error", err)
		return types.NewAppError(types.ErrCodeValidationInvalidQuery, "invalid request", err)
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fe.Field(),
			Code:    string(tagToErrorCode(fe.Tag())),
			Message: fe.Error(),
		})
	}

	first := verrs[0]
	return types.NewAppError(tagToErrorCode(first.Tag()), "invalid "+first.Field(), err).
		WithDetails(map[string]any{"validation_errors": out})
}

func tagToErrorCode(tag string) types.ErrorCode {
	switch tag {
	case "language_code":
		return types.ErrCodeValidationInvalidLanguage
	case "min", "max":
		return types.ErrCodeValidationInvalidLimit
	default:
		return types.ErrCodeValidationInvalidQuery
	}
}
