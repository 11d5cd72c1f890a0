package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

// ValidateSortKey checks the sort key against the allowed list
func ValidateSortKey(key string) error {
	allowed := map[string]bool{
		"date":       true,
		"confidence": true,
		"status":     true,
	}

	if !allowed[strings.ToLower(key)] {
		return fmt.Errorf("invalid sort key: %s (allowed: date, confidence, status)", key)
	}
	return nil
}

// ValidateSortOrder checks the sort direction
func ValidateSortOrder(order string) error {
	if order != "asc" && order != "desc" {
		return fmt.Errorf("invalid sort order: %s (allowed: asc, desc)", order)
	}
	return nil
}

// ValidateViolationType validates a violation-type filter value;
// "all" disables the filter
func ValidateViolationType(vt string) error {
	if vt == "" {
		return fmt.Errorf("violation type cannot be empty")
	}

	// Allow alphanumeric, dash, underscore, dot (max 64 chars)
	pattern := `^[a-zA-Z0-9._-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, vt)
	if !matched {
		return fmt.Errorf("invalid violation type format (alphanumeric, dash, underscore, dot only, max 64 chars)")
	}

	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates the recent-analyses limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 10 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
