package services

import (
	"errors"
	"fmt"
	"strings"

	sharedDomain "github.com/felixgeelhaar/cohort/internal/shared/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

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
		details[fe.Field()] = fe.Tag()
		names = append(names, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return sharedDomain.InvalidRequest(op, "invalid fields: %s", strings.Join(names, ", ")).WithDetails(details)
}
