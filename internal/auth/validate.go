package auth

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/nikhilbhutani/tableside/internal/password"
)

const (
	minPasswordBytes = 8
	minSlugLen       = 3
	maxSlugLen       = 63
	maxNameLen       = 120
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// normalize trims and lower-cases the identifying fields and rejects input
// that can never produce a valid account.
func (r *RegisterRequest) normalize() error {
	r.Email = normalizeEmail(r.Email)
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.FullName = strings.TrimSpace(r.FullName)
	r.TenantName = strings.TrimSpace(r.TenantName)

	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return invalid("email is not a valid address")
	}
	if err := checkPassword(r.Password); err != nil {
		return err
	}
	if r.FullName == "" || len(r.FullName) > maxNameLen {
		return invalid("fullName must be between 1 and %d characters", maxNameLen)
	}
	if r.TenantName == "" || len(r.TenantName) > maxNameLen {
		return invalid("tenantName must be between 1 and %d characters", maxNameLen)
	}
	if len(r.Slug) < minSlugLen || len(r.Slug) > maxSlugLen || !slugPattern.MatchString(r.Slug) {
		return invalid("slug must be %d-%d lowercase letters, digits or single hyphens", minSlugLen, maxSlugLen)
	}
	return nil
}

func checkPassword(pw string) error {
	if len(pw) < minPasswordBytes || len(pw) > password.MaxPasswordBytes {
		return invalid("password must be between %d and %d bytes", minPasswordBytes, password.MaxPasswordBytes)
	}
	var letter, digit bool
	for _, c := range pw {
		switch {
		case unicode.IsLetter(c):
			letter = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	if !letter || !digit {
		return invalid("password must contain a letter and a digit")
	}
	return nil
}
