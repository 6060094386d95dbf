package goReset

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/MrEthical07/goReset/internal"
)

const maxEmailLength = 254

var inputValidator = validator.New()

// validEmail accepts any syntactically valid address. Case is preserved;
// "A@x.com" and "a@x.com" are different identities.
func validEmail(email string) bool {
	if len(email) > maxEmailLength {
		return false
	}
	return inputValidator.Var(email, "required,email") == nil
}

func codeValidator(digits int) func(string) bool {
	return func(code string) bool {
		return len(code) == digits && internal.IsNumeric(code)
	}
}

func validJTI(jti string) bool {
	_, err := uuid.Parse(jti)
	return err == nil
}
