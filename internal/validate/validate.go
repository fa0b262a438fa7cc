package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"storefront/internal/domain"
)

var (
	reEmail    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reUsername = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,30}$`)
	reQ        = regexp.MustCompile(`^[\p{L}\p{N} _'.&+-]{1,100}$`)
	reID       = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	rePhone    = regexp.MustCompile(`^[0-9+() -]{0,20}$`)
	rePostal   = regexp.MustCompile(`^[A-Za-z0-9 -]{2,12}$`)
	reURL      = regexp.MustCompile(`^(https?://|/)[^\s]{1,500}$`)
)

// Email trims and lower-cases before matching.
func Email(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 0 || len(s) > 254 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

func Username(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reUsername.MatchString(s)
}

// Password: 8-72 bytes (bcrypt's input limit) with at least one letter and one digit.
func Password(s string) bool {
	if len(s) < 8 || len(s) > 72 {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, reQ.MatchString(s)
}

// ID validates a resource identifier taken from a path or body.
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// OptionalID accepts the empty string.
func OptionalID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	return ID(s)
}

// Text trims s and checks its length in runes.
func Text(s string, min, max int) (string, bool) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	return s, n >= min && n <= max
}

// Name is an optional display name.
func Name(s string) (string, bool) {
	return Text(s, 0, 50)
}

func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, rePhone.MatchString(s)
}

func URL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reURL.MatchString(s)
}

// URLs validates and trims every entry. Callers cap the list length themselves.
func URLs(list []string) ([]string, bool) {
	out := make([]string, 0, len(list))
	for _, u := range list {
		v, ok := URL(u)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

// Address normalises a postal address and returns the first invalid field.
func Address(a domain.Address) (domain.Address, string) {
	var ok bool
	if a.FullName, ok = Text(a.FullName, 1, 100); !ok {
		return a, "full_name"
	}
	if a.Street, ok = Text(a.Street, 1, 200); !ok {
		return a, "street"
	}
	if a.City, ok = Text(a.City, 1, 100); !ok {
		return a, "city"
	}
	if a.State, ok = Text(a.State, 0, 100); !ok {
		return a, "state"
	}
	if a.PostalCode = strings.TrimSpace(a.PostalCode); !rePostal.MatchString(a.PostalCode) {
		return a, "postal_code"
	}
	if a.Country, ok = Text(a.Country, 2, 60); !ok {
		return a, "country"
	}
	if a.Label, ok = Text(a.Label, 0, 40); !ok {
		return a, "label"
	}
	if a.Phone, ok = Phone(a.Phone); !ok {
		return a, "phone"
	}
	return a, ""
}

func Qty(n int) bool { return n >= 1 && n <= 100 }

func Rating(n int) bool { return n >= 1 && n <= 5 }

// Page parses a 1-based page number; junk falls back to 1 and huge values
// are capped at domain.MaxPage.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	if n > domain.MaxPage {
		return domain.MaxPage
	}
	return n
}

// Limit parses a page size, clamped to [1, domain.MaxPageSize].
func Limit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return domain.DefaultPageSize
	}
	if n > domain.MaxPageSize {
		return domain.MaxPageSize
	}
	return n
}
