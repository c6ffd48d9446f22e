package validator

import (
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// Init builds the shared validator instance.
func Init() {
	validate = validator.New()
}

// Struct validates a struct against its `validate` tags.
func Struct(s interface{}) error {
	if validate == nil {
		Init()
	}
	return validate.Struct(s)
}
