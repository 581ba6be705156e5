package utils

import (
	"errors"
	"regexp"
)

const (
	passwordMinLength = 10
	passwordMaxLength = 128
)

var handleRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)

// passwordRules are checked in order; the first failure is reported.
var passwordRules = []struct {
	re   *regexp.Regexp
	want bool
	msg  string
}{
	{regexp.MustCompile(`\s`), false, "password must not contain spaces"},
	{regexp.MustCompile(`[A-Z]`), true, "password must include at least one uppercase letter"},
	{regexp.MustCompile(`[a-z]`), true, "password must include at least one lowercase letter"},
	{regexp.MustCompile(`[0-9]`), true, "password must include at least one digit"},
}

// ValidateHandle checks a login handle before any store lookup happens.
func ValidateHandle(s string) error {
	if !handleRe.MatchString(s) {
		return errors.New("invalid handle")
	}
	return nil
}

func ValidatePassword(s string) error {
	if len(s) < passwordMinLength {
		return errors.New("password too short (min 10 chars)")
	}
	if len(s) > passwordMaxLength {
		return errors.New("password too long (max 128 chars)")
	}
	for _, rule := range passwordRules {
		if rule.re.MatchString(s) != rule.want {
			return errors.New(rule.msg)
		}
	}
	return nil
}
