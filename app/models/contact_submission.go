package models

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrContactFieldsMissing = errors.New("contact: required fields missing")
	ErrContactInvalidEmail  = errors.New("contact: invalid email format")
)

var simpleEmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var contactValidator = newContactValidator()

func newContactValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("simple_email", func(fl validator.FieldLevel) bool {
		return simpleEmailPattern.MatchString(fl.Field().String())
	})
	return v
}

// ContactSubmission is a contact form post. Employees and Phone are optional.
type ContactSubmission struct {
	Name      string `form:"name" json:"name" validate:"required"`
	Email     string `form:"email" json:"email" validate:"required,simple_email"`
	Company   string `form:"company" json:"company" validate:"required"`
	Employees string `form:"employees" json:"employees"`
	Phone     string `form:"phone" json:"phone"`
	Message   string `form:"message" json:"message" validate:"required"`
	Timestamp string `form:"-" json:"timestamp"`
	IP        string `form:"-" json:"ip"`
	UserAgent string `form:"-" json:"userAgent"`
}

// Validate reports ErrContactFieldsMissing before ErrContactInvalidEmail so a
// post with both problems is answered as missing fields.
func (s *ContactSubmission) Validate() error {
	err := contactValidator.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return ErrContactFieldsMissing
		}
	}
	return ErrContactInvalidEmail
}

// EmailSubject is the subject line of the relayed message.
func (s *ContactSubmission) EmailSubject() string {
	return "New Contact: " + singleLine(s.Name) + " from " + singleLine(s.Company)
}

func singleLine(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// EmailText renders the relayed message body.
func (s *ContactSubmission) EmailText() string {
	employees := s.Employees
	if employees == "" {
		employees = "Not specified"
	}
	phone := s.Phone
	if phone == "" {
		phone = "Not provided"
	}

	var b strings.Builder
	b.WriteString("New Contact Form Submission\n\n")
	b.WriteString("Name: " + s.Name + "\n")
	b.WriteString("Email: " + s.Email + "\n")
	b.WriteString("Company: " + s.Company + "\n")
	b.WriteString("Employees: " + employees + "\n")
	b.WriteString("Phone: " + phone + "\n\n")
	b.WriteString("Message:\n" + s.Message + "\n\n")
	b.WriteString("Submitted: " + s.Timestamp + "\n")
	return b.String()
}
