// Package validation は呼び出し側の入力の前提条件チェックを提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hitoshi/learnhub/internal/model"
)

// Validator はタグに基づいて構造体を検証する。並行利用可能。
type Validator struct {
	v *validator.Validate
}

// New はValidatorを生成する。エラーのフィールド名にはjsonタグの名前を使う。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Struct は構造体を検証し、違反があれば最初の違反を表すInvalidArgumentエラーを返す。
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return model.NewInvalidArgumentError(fe.Field(), reason(fe))
	}
	return fmt.Errorf("failed to validate input: %w", err)
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "email":
		return "must be a valid email address"
	case "gte", "min":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	default:
		return "failed on " + fe.Tag()
	}
}
