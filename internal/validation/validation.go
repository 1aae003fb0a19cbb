package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gravadigital/billetterie-api/internal/domain/common"
)

// Validator wraps go-playground/validator with the project's custom tags and
// converts its errors into common.ValidationError.
type Validator struct {
	validate       *validator.Validate
	minYearOfBirth int
}

// New creates a validator. minYearOfBirth backs the "birthyear" tag.
func New(minYearOfBirth int) *Validator {
	v := &Validator{
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		minYearOfBirth: minYearOfBirth,
	}

	// report json names instead of Go field names
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.validate.RegisterValidation("notblank", validateNotBlank)
	_ = v.validate.RegisterValidation("birthyear", v.validateBirthYear)

	return v
}

// MinYearOfBirth returns the lowest accepted year of birth
func (v *Validator) MinYearOfBirth() int {
	return v.minYearOfBirth
}

// Struct validates a struct and returns a *common.ValidationError on failure
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &common.ValidationError{}
	for _, fe := range vErrors {
		out.Add(fe.Field(), v.message(fe))
	}
	return out
}

// StructAt validates s and prefixes field names, e.g. "registrations[2].first_name"
func (v *Validator) StructAt(prefix string, s any) error {
	err := v.Struct(s)
	var verr *common.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	for i := range verr.Fields {
		verr.Fields[i].Field = prefix + "." + verr.Fields[i].Field
	}
	return verr
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "birthyear":
		return fmt.Sprintf("must be %d or later", v.minYearOfBirth)
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "datetime":
		return "must match the format " + fe.Param()
	default:
		return "is invalid"
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func (v *Validator) validateBirthYear(fl validator.FieldLevel) bool {
	return int(fl.Field().Int()) >= v.minYearOfBirth
}

// ParseUUID valida y convierte un identificador
func ParseUUID(value, fieldName string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, common.NewValidationError(fieldName, "must be a valid UUID")
	}
	return id, nil
}
