// Package normalizer handles regional number and date conventions found in
// exchange exports and in amounts typed by users.
package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount format")
	ErrEmptyAmount   = errors.New("amount is empty")
	ErrInvalidDate   = errors.New("invalid date format")
)

var (
	decimalCommaPattern = regexp.MustCompile(`(\d),(\d)`)
	slashDatePattern    = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})(?:[ T](\d{2}):(\d{2})(?::(\d{2}))?)?\b`)
	spacePattern        = regexp.MustCompile(`\s+`)
)

// NormalizeDecimals rewrites every digit-comma-digit sequence to
// digit-dot-digit. Already normalized text is returned unchanged.
func NormalizeDecimals(s string) string {
	for {
		next := decimalCommaPattern.ReplaceAllString(s, "$1.$2")
		if next == s {
			return s
		}
		s = next
	}
}

// NormalizeDates rewrites DD/MM/YYYY to YYYY-MM-DDT00:00:00. A trailing
// HH:MM[:SS] is folded into the ISO timestamp. ISO input is left untouched.
func NormalizeDates(s string) string {
	return slashDatePattern.ReplaceAllStringFunc(s, func(match string) string {
		m := slashDatePattern.FindStringSubmatch(match)
		day, month, year := m[1], m[2], m[3]
		hour, minute, second := "00", "00", "00"
		if m[4] != "" {
			hour, minute = m[4], m[5]
			if m[6] != "" {
				second = m[6]
			}
		}
		return year + "-" + month + "-" + day + "T" + hour + ":" + minute + ":" + second
	})
}

// NormalizeField applies date then decimal normalization to one field.
func NormalizeField(s string) string {
	return NormalizeDecimals(NormalizeDates(s))
}

// ParseAmount converts a string amount to a decimal.
// Supports both European (1.234,56) and American (1,234.56) formats
func ParseAmount(raw string, isEuropean bool) (decimal.Decimal, error) {
	// Keep digits, separators and sign; drops currency symbols and spaces
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' || r == '+' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" {
		if strings.TrimSpace(raw) == "" {
			return decimal.Zero, ErrEmptyAmount
		}
		return decimal.Zero, ErrInvalidAmount
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimLeft(cleaned, "+-")

	if isEuropean {
		// European: 1.234,56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		// American: 1,234.56 -> 1234.56
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	val, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if isNegative {
		val = val.Neg()
	}

	return val, nil
}

// ParseLocaleAmount guesses the convention from the last separator present:
// "0,5" and "1.234,56" are European, "1,234.56" and "0.5" are not.
func ParseLocaleAmount(raw string) (decimal.Decimal, error) {
	return ParseAmount(raw, isEuropeanAmount(raw))
}

func isEuropeanAmount(raw string) bool {
	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")
	if lastComma < 0 {
		return false
	}
	if lastDot < 0 {
		if strings.Count(raw, ",") > 1 {
			return false
		}
		// "1,234" is ambiguous; three trailing digits read as thousands
		// unless the integer part is zero
		intPart := strings.TrimLeft(strings.TrimSpace(raw[:lastComma]), "+-")
		return intPart == "0" || len(strings.TrimSpace(raw[lastComma+1:])) != 3
	}
	return lastComma > lastDot
}

// ParseStrictAmount parses a field that must already be a plain decimal
// number after normalization, such as an export's change column.
func ParseStrictAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(NormalizeDecimals(raw))
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	val, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return val, nil
}

// Timestamp and date formats seen in exchange exports, in the token form
// accepted by ParseFlexibleDate and stored as an export's date format.
var dateFormats = []string{
	// ISO with time
	"YYYY-MM-DDTHH:mm:ss",
	"YYYY-MM-DD HH:mm:ss",
	"YYYY-MM-DDTHH:mm:ssZ07:00",
	"YYYY-MM-DDTHH:mm:ss.000Z",
	"YYYY-MM-DD HH:mm",

	// Short-year exchange format
	"YY-MM-DD HH:mm:ss",

	// European (DD-MM-YYYY variants)
	"DD-MM-YYYY HH:mm:ss",
	"DD-MM-YYYY",
	"DD.MM.YYYY",

	// ISO (YYYY-MM-DD)
	"YYYY-MM-DD",
	"YYYY/MM/DD",
}

// ParseFlexibleDate attempts to parse a date using multiple formats
func ParseFlexibleDate(raw string, preferredFormat string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	if loc == nil {
		loc = time.UTC
	}

	if preferredFormat != "" {
		if t, err := time.ParseInLocation(convertDateFormat(preferredFormat), raw, loc); err == nil {
			return t, nil
		}
	}

	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(convertDateFormat(format), raw, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// DetectDateFormat returns the first format, preferred one included, that
// parses every non-empty sample. It returns "" when none does.
func DetectDateFormat(samples []string, preferredFormat string, loc *time.Location) string {
	candidates := dateFormats
	if preferredFormat != "" {
		candidates = append([]string{preferredFormat}, dateFormats...)
	}
	if loc == nil {
		loc = time.UTC
	}

	seen := false
	for _, format := range candidates {
		goFormat := convertDateFormat(format)
		ok := true
		for _, raw := range samples {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			seen = true
			if _, err := time.ParseInLocation(goFormat, raw, loc); err != nil {
				ok = false
				break
			}
		}
		if !seen {
			return ""
		}
		if ok {
			return format
		}
	}
	return ""
}

// convertDateFormat converts user-friendly format strings to Go format
// e.g., "DD-MM-YYYY" -> "02-01-2006"
func convertDateFormat(format string) string {
	// Longest tokens first so "YYYY" is not consumed as two "YY"
	replacements := []struct{ pattern, goFmt string }{
		{"YYYY", "2006"},
		{"YY", "06"},
		{"MM", "01"},
		{"DD", "02"},
		{"HH", "15"},
		{"mm", "04"},
		{"ss", "05"},
	}

	result := format
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r.pattern, r.goFmt)
	}
	return result
}

// CleanDescription normalizes free-text remarks
func CleanDescription(raw string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
}
