package users

import (
	"errors"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

const (
	NameMinLength     = 1
	NameMaxLength     = 256
	EmailMaxLength    = 254
	PasswordMinLength = 10
	PasswordMaxLength = 256
)

// Registration carries the plaintext attributes of a new account.
type Registration struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	IsAdmin   bool   `json:"-"`
}

// Normalize trims names and email and lowercases the email. The password
// is left untouched.
func (r Registration) Normalize() Registration {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = NormalizeEmail(r.Email)
	return r
}

// Validate runs the attribute rules on plaintext. Violations come back as a
// *ValidationError.
func (r Registration) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.FirstName,
			validation.Required.Error("First name is required."),
			validation.Length(NameMinLength, NameMaxLength).Error("The first name must be between 1 and 256 characters."),
		),
		validation.Field(&r.LastName,
			validation.Required.Error("Last name is required."),
			validation.Length(NameMinLength, NameMaxLength).Error("The last name must be between 1 and 256 characters."),
		),
		validation.Field(&r.Email,
			validation.Required.Error("Email address is required."),
			validation.Length(0, EmailMaxLength).Error("The email must be of maximum length 254 characters."),
			is.Email.Error("Please provide a valid email address."),
		),
		validation.Field(&r.Password,
			validation.Required.Error("Password is required."),
			validation.Length(PasswordMinLength, PasswordMaxLength).Error("The password must be between 10 and 256 characters."),
		),
	)
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return newValidationError(fieldErrs)
	}
	return err
}

// ValidationError lists attribute rule violations by field name.
// It matches common.ErrorValidation under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(errs validation.Errors) *ValidationError {
	fields := make(map[string]string, len(errs))
	for name, err := range errs {
		if err != nil {
			fields[name] = err.Error()
		}
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return common.ErrorValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return common.ErrorValidation }
