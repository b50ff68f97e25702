package services

import (
	"errors"
	"fmt"
	"strings"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// validateStruct runs the struct tags of v and reports failures as an
// InvalidRequest error with one detail per field.
func validateStruct(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return sharedDomain.NewError(sharedDomain.KindInvalidRequest, op, err)
	}
	details := make(map[string]string, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Namespace()] = fe.Tag()
		names = append(names, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return sharedDomain.InvalidRequest(op, "invalid fields: %s", strings.Join(names, ", ")).WithDetails(details)
}

// invalid wraps a domain validation failure.
func invalid(op string, err error, ids ...uuid.UUID) error {
	return sharedDomain.NewError(sharedDomain.KindInvalidRequest, op, err, ids...)
}
