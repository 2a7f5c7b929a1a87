package http

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var ErrEmptyUUID = errors.New("uuid cannot be empty")

// ValidateStruct runs `validate` tags on a decoded request body and
// returns a field->rule map suitable for the error envelope details.
func ValidateStruct(v any) (map[string]any, error) {
	err := validate.Struct(v)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return details, err
}

func ValidateUUID(s string) error {
	if s == "" {
		return ErrEmptyUUID
	}
	_, err := uuid.Parse(s)
	return err
}
