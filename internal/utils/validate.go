package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}

// IsSafeKey reports whether s can be used as a document field name:
// non-empty, no dots, no dollar signs.
func IsSafeKey(s string) bool {
	return strings.TrimSpace(s) != "" && !strings.ContainsAny(s, ".$")
}
