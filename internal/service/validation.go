package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nebari-dev/tenancy/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateWorkspace checks the workspace's struct tags and returns a
// ValidationError describing every violated field.
func validateWorkspace(ws *models.Workspace) error {
	err := validate.Struct(ws)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate workspace: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return &ValidationError{Message: "invalid workspace: " + strings.Join(msgs, "; ")}
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	case "fqdn":
		return field + " must be a valid domain name"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
