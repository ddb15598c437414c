package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"tokenq/internal/schedules/policy"
	"tokenq/pkg/logger"
	"tokenq/pkg/model"
	"tokenq/pkg/sanitizer"

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

type ScheduleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewScheduleValidator(log *logger.Logger) *ScheduleValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("datecode", validateDateCode); err != nil {
		log.Fatal("Failed to register 'datecode' validator", "error", err)
	}
	if err := v.RegisterValidation("token_limit", validateTokenLimit); err != nil {
		log.Fatal("Failed to register 'token_limit' validator", "error", err)
	}

	log.Info("Schedule validator initialized successfully")

	return &ScheduleValidator{
		validate: v,
		logger:   log,
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validateDateCode(fl validator.FieldLevel) bool {
	return policy.IsValidDateCode(fl.Field().String())
}

func validateTokenLimit(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := fl.Field().Int()
		return n >= sanitizer.MinDailyLimit && n <= sanitizer.MaxDailyLimit
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fl.Field().Uint() <= sanitizer.MaxDailyLimit
	}
	return false
}

func (v *ScheduleValidator) ValidateSchedule(update *model.ScheduleUpdate) error {
	return v.validateStruct(update)
}

func (v *ScheduleValidator) ValidateSiteConfig(sc *model.SiteConfig) error {
	return v.validateStruct(sc)
}

func (v *ScheduleValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ScheduleValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "datecode":
			message = fmt.Sprintf("%q is not a YYYY-MM-DD date", err.Value())
		case "token_limit":
			message = fmt.Sprintf("limit must be between %d and %d", sanitizer.MinDailyLimit, sanitizer.MaxDailyLimit)
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Namespace(),
			Message: message,
		})
	}

	return validationErrors
}
