package service

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/flashcards/internal/model"
)

// Validation limits.
const (
	MaxEmailLength  = 254
	MaxNameLength   = 150
	MaxTitleLength  = 200
	DefaultPageSize = 0 // no pagination unless the client asks
	MaxPageSize     = 100
)

// fieldErrors collects per-field validation messages so a request reports
// every problem at once instead of the first one.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

// NormalizeEmail trims the address and lowercases its domain part. The
// local part is left alone since mailbox names may be case-sensitive.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}

// validateEmail accepts a bare address only; display-name forms such as
// "Ana <ana@example.com>" are rejected.
func validateEmail(errs fieldErrors, email string) {
	switch {
	case email == "":
		errs.add("email", "this field is required")
	case utf8.RuneCountInString(email) > MaxEmailLength:
		errs.add("email", fmt.Sprintf("ensure this field has no more than %d characters", MaxEmailLength))
	default:
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email || addr.Name != "" {
			errs.add("email", "enter a valid email address")
		}
	}
}

func validateName(errs fieldErrors, field, value string) {
	if utf8.RuneCountInString(value) > MaxNameLength {
		errs.add(field, fmt.Sprintf("ensure this field has no more than %d characters", MaxNameLength))
	}
}

// validateTitle checks a collection title. required controls whether a nil
// title is an error (create and full update) or means "keep" (patch).
func validateTitle(errs fieldErrors, title *string, required bool) {
	if title == nil {
		if required {
			errs.add("title", "this field is required")
		}
		return
	}
	trimmed := strings.TrimSpace(*title)
	switch {
	case trimmed == "":
		errs.add("title", "this field may not be blank")
	case utf8.RuneCountInString(trimmed) > MaxTitleLength:
		errs.add("title", fmt.Sprintf("ensure this field has no more than %d characters", MaxTitleLength))
	}
}

func validateCardText(errs fieldErrors, field, value string) {
	if strings.TrimSpace(value) == "" {
		errs.add(field, "this field may not be blank")
	}
}

// validateCardInputs checks every nested card descriptor, keying errors as
// cards_data[i].front so clients can point at the offending row.
func validateCardInputs(errs fieldErrors, cards []model.CardInput) {
	for i, c := range cards {
		prefix := fmt.Sprintf("cards_data[%d].", i)
		validateCardText(errs, prefix+"front", c.Front)
		validateCardText(errs, prefix+"back", c.Back)
		if c.ID != nil && *c.ID < 0 {
			errs.add(prefix+"id", "a valid card id is required")
		}
	}
}

// clampPage bounds a client-supplied page size.
func clampPage(limit, offset int) (int, int) {
	if limit < 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
