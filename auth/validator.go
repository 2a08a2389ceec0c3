package auth

import (
	stderrors "errors"
	"fmt"
	"unicode"

	"direct-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RegisterRequest constrains display names to alphanumerics so the room
// key separator can never appear inside an identity.
type RegisterRequest struct {
	Username string `validate:"required,min=3,max=24,alphanum"`
	Password string `validate:"required,min=12,max=72"`
}

// ValidateRegister maps each failing field onto its own sentinel, so a
// rejected display name never reads as a password problem.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if stderrors.As(err, &fieldErrors) {
			for _, fieldError := range fieldErrors {
				if fieldError.Field() == "Username" {
					return fmt.Errorf("%w: %v", errors.ErrInvalidUsername, err)
				}
			}
		}
		return fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
