package utils

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	apperrors "librefind/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// PackageNamePattern is the reverse-domain identifier accepted for catalog
// package names.
var PackageNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z0-9_]+)+[0-9a-z_]$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("pkgname", func(fl validator.FieldLevel) bool {
		return PackageNamePattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = v.RegisterValidation("httpsurl", func(fl validator.FieldLevel) bool {
		return IsSecureURL(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// IsSecureURL reports whether raw is an absolute https URL with a host.
func IsSecureURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https") && u.Host != ""
}

// ValidateStruct validates a struct based on its validation tags.
// Failures come back as *apperrors.ValidationErrors keyed by JSON field name.
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError formats validation errors into field-level messages
func formatValidationError(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	errs := apperrors.NewValidationErrors()
	for _, e := range validationErrors {
		field := lowerFirst(e.Field())
		switch e.Tag() {
		case "pkgname":
			errs.AddFieldError(field, apperrors.ErrInvalidPackageName)
		case "httpsurl":
			errs.AddFieldError(field, apperrors.ErrInsecureRepoURL)
		case "min", "max":
			if field == "stars" {
				errs.AddFieldError(field, apperrors.ErrStarsOutOfRange)
				continue
			}
			errs.Add(field, formatFieldError(field, e))
		default:
			errs.Add(field, formatFieldError(field, e))
		}
	}
	return errs
}

// formatFieldError formats a single field validation error
func formatFieldError(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at most %s entries", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "dive":
		return fmt.Sprintf("%s contains invalid values", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
