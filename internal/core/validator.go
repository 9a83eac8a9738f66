package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"microgrid/internal/types"
)

// Validator wraps go-playground/validator with the domain tags and maps
// failures to validation_ error codes.
//
// Custom tags:
//   - target_load: a positive setpoint no larger than types.MaxTargetLoadKw.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// tagCodes maps a failing tag to the error code reported to clients.
var tagCodes = map[string]types.ErrorCode{
	"target_load": types.ErrCodeValidationTargetLoadRange,
	"required":    types.ErrCodeValidationMissingField,
}

// NewValidator creates a Validator. Field names in errors use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("target_load", validateTargetLoad); err != nil {
		// Registration only fails for an empty tag or nil func.
		panic(err)
	}
	return &Validator{validate: v, logger: logger}
}

func validateTargetLoad(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Float64 && f.Kind() != reflect.Float32 {
		return false
	}
	kw := f.Float()
	return kw > 0 && kw <= types.MaxTargetLoadKw
}

// ValidateStruct validates s and returns a *types.AppError describing the
// first failing field, or nil.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("struct validation misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fe := verrs[0]
	code, ok := tagCodes[fe.Tag()]
	if !ok {
		code = types.ErrCodeValidationInvalidBody
	}
	return types.NewAppErrorWithDetails(code, message(fe), err, map[string]any{
		"field": fe.Field(),
		"rule":  fe.Tag(),
	})
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "target_load":
		return fmt.Sprintf("%s must be greater than 0 and at most %.0f kW", fe.Field(), types.MaxTargetLoadKw)
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag())
	}
}
