package httpx

import (
	"github.com/go-playground/validator/v10"
)

// StructValidator adapts go-playground/validator so handlers can call
// c.Validate on bound request structs carrying validate tags.
type StructValidator struct {
	validate *validator.Validate
}

func NewStructValidator() *StructValidator {
	return &StructValidator{validate: validator.New()}
}

func (v *StructValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return HTTPError(StatusBadRequest, err.Error())
	}
	return nil
}
