package utils

import (
	"strings"
	"unicode"
)

// NormalizeIdentifier converts the name of an identifier (program name or input name) to a valid
// StableHLO one: only letters, digits, and underscores are allowed.
//
// Invalid characters are replaced with underscores.
// If the name starts with a digit, it is prefixed with an underscore, since names made only of digits are
// reserved for intermediary values.
func NormalizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(name) + 1)
	if name[0] >= '0' && name[0] <= '9' {
		sb.WriteRune('_')
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

// ToSnakeCase converts a string from CamelCase to snake_case: "BroadcastInDim" becomes "broadcast_in_dim".
func ToSnakeCase(s string) string {
	var res strings.Builder
	res.Grow(len(s) + 5)
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			res.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			var next rune
			if i < len(runes)-1 {
				next = runes[i+1]
			}
			if (!unicode.IsUpper(prev) && prev != '_') ||
				(unicode.IsUpper(prev) && next != 0 && !unicode.IsUpper(next) && next != '_') {
				res.WriteRune('_')
			}
		}
		res.WriteRune(unicode.ToLower(r))
	}
	return res.String()
}
