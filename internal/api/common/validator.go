package common

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator for echo
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates the request validator installed on the echo instance
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate validates the struct
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
