package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// ContactValidator checks contact details after sanitization, so an
// unparseable mobile arrives here empty and fails "required".
type ContactValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewContactValidator(log *logger.Logger) *ContactValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	log.Info("Contact validator initialized successfully")

	return &ContactValidator{
		validate: v,
		logger:   log,
	}
}

func (v *ContactValidator) Validate(contact *model.Contact) error {
	return v.validateStruct(contact)
}

func (v *ContactValidator) ValidateUpdate(update *model.ContactUpdate) error {
	if update.Mobile != nil && *update.Mobile == "" {
		return ValidationErrors{{Field: "mobile", Message: "mobile must be a valid phone number"}}
	}
	return v.validateStruct(update)
}

func (v *ContactValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ContactValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
			if err.Field() == "mobile" {
				message = "mobile must be a valid phone number"
			}
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "e164":
			message = "mobile must be in international format (e.g., +923001234567)"
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
