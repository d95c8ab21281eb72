// Package validation checks request bodies before they reach the services.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/ayush/todo-auth/internal/apperr"
)

// PasswordSymbols is the set a password must draw at least one symbol from.
const PasswordSymbols = "@#$%^&+="

// Validator wraps go-playground/validator with the service's custom rules
// and human-readable messages.
type Validator struct {
	v        *validator.Validate
	domain   string
	messages map[string]string
}

// New builds a Validator that only accepts emails under domain.
func New(domain string) (*Validator, error) {
	domain = strings.ToLower(strings.TrimPrefix(domain, "@"))
	if domain == "" {
		return nil, errors.New("validation: empty email domain")
	}
	emailRe := regexp.MustCompile(`^[A-Za-z0-9._%+-]+@` + regexp.QuoteMeta(domain) + `$`)

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("emaildomain", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	}); err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	}); err != nil {
		return nil, err
	}

	return &Validator{v: v, domain: domain, messages: messages(domain)}, nil
}

// StrongPassword reports whether s has a digit, a lower and an upper case
// letter, and one of PasswordSymbols.
func StrongPassword(s string) bool {
	var digit, lower, upper, symbol bool
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digit = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case strings.ContainsRune(PasswordSymbols, c):
			symbol = true
		}
	}
	return digit && lower && upper && symbol
}

// Struct validates s and returns an apperr validation error listing one
// "field: message" entry per failing field.
func (x *Validator) Struct(s any) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := x.messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "invalid"
		}
		details = append(details, fe.Field()+": "+msg)
	}
	return apperr.Validation(details...)
}

func messages(domain string) map[string]string {
	title := "Title must be between 3 and 50 characters long"
	desc := "Description must be between 3 and 255 characters long"
	return map[string]string{
		"username.notblank":    "Username is required",
		"email.notblank":       "Email is required",
		"email.email":          "Email is invalid",
		"email.emaildomain":    "Email must be in the " + domain + " domain",
		"password.notblank":    "Password is required",
		"password.min":         "Password must be at least 8 characters long",
		"password.password":    "Password must contain at least one digit, one lower, one upper, one special character",
		"identifier.notblank":  "User name or email is required",
		"title.notblank":       "Title is required",
		"title.min":            title,
		"title.max":            title,
		"description.notblank": "Description is required",
		"description.min":      desc,
		"description.max":      desc,
	}
}
