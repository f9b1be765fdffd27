package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"authapi/internal/modules/credentials"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required,min=6,hashable"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest only validates NewPassword; Token is checked by the
// token verifier.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"-"`
	NewPassword string `json:"newPassword" validate:"required,min=6,hashable"`
}

// Validator checks request shapes and reports the first failing field.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// hashable caps passwords at the bcrypt input limit, counted in bytes.
	_ = v.RegisterValidation("hashable", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= credentials.MaxPasswordBytes
	})
	return &Validator{validate: v}
}

// Check returns nil or a KindValidation error naming the first failing field.
func (v *Validator) Check(req any) *Error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return newError(KindValidation, err.Error())
	}
	return newError(KindValidation, fieldMessage(fieldErrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "min":
		return fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
	case "hashable":
		return fmt.Sprintf("%q length must be less than or equal to %d bytes long", field, credentials.MaxPasswordBytes)
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}
