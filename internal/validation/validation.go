package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnknownPollutant is returned when the pollutant code is not one of Pollutants.
var ErrUnknownPollutant = errors.New("unknown pollutant")

// ErrInvalidDuration is returned when a horizon or window is not of the form Nh or Nd.
var ErrInvalidDuration = errors.New("duration must look like 24h or 7d")

// ErrDurationOutOfRange is returned when a parsed duration falls outside the allowed hours.
var ErrDurationOutOfRange = errors.New("duration out of range")

// ErrRegionEmpty is returned when region is empty or whitespace-only after trim.
var ErrRegionEmpty = errors.New("region is required")

// ErrRegionTooLong is returned when region length exceeds the maximum.
var ErrRegionTooLong = errors.New("region too long")

// ErrInvalidChars is returned when region or station id contains disallowed characters.
var ErrInvalidChars = errors.New("contains invalid characters")

// ErrInvalidStationID is returned for empty or oversized station ids.
var ErrInvalidStationID = errors.New("invalid station id")

// Pollutants lists the canonical pollutant codes served by the API.
var Pollutants = []string{"PM2.5", "PM10", "NO2", "O3", "SO2", "CO"}

// CanonicalPollutant matches input case-insensitively against Pollutants and
// returns the canonical spelling (e.g. "pm2.5" -> "PM2.5").
func CanonicalPollutant(input string) (string, error) {
	s := strings.TrimSpace(input)
	for _, p := range Pollutants {
		if strings.EqualFold(p, s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPollutant, input)
}

// IsParticulate reports whether the pollutant is a particulate matter code.
func IsParticulate(pollutant string) bool {
	return strings.HasPrefix(strings.ToUpper(pollutant), "PM")
}

// Units returns the reporting unit for a pollutant.
func Units(pollutant string) string {
	if IsParticulate(pollutant) {
		return "ug/m3"
	}
	return "ppb"
}

// ParseHours parses "Nh" or "Nd" into a whole number of hours and enforces
// minHours <= hours <= maxHours.
func ParseHours(input string, minHours, maxHours int) (int, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
	}
	mult := 0
	switch s[len(s)-1] {
	case 'h':
		mult = 1
	case 'd':
		mult = 24
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, input)
	}
	// bound n first so n*mult cannot wrap back into range
	if n < 0 || n > maxHours/mult {
		return 0, fmt.Errorf("%w: %q not in [%dh, %dh]", ErrDurationOutOfRange, input, minHours, maxHours)
	}
	return CheckHours(n*mult, minHours, maxHours)
}

// CheckHours enforces minHours <= hours <= maxHours.
func CheckHours(hours, minHours, maxHours int) (int, error) {
	if hours < minHours || hours > maxHours {
		return 0, fmt.Errorf("%w: %dh not in [%dh, %dh]", ErrDurationOutOfRange, hours, minHours, maxHours)
	}
	return hours, nil
}

// ValidateRegion trims the input, enforces maxLen (in runes) and restricts to
// letters (Unicode), digits, space, comma, hyphen.
func ValidateRegion(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrRegionEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrRegionTooLong
	}
	for _, c := range r {
		if !isAllowedRegionRune(c) {
			return "", fmt.Errorf("region %w", ErrInvalidChars)
		}
	}
	return s, nil
}

// ValidateStationID accepts ASCII letters, digits and hyphens, up to 64 chars.
func ValidateStationID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" || len(s) > 64 {
		return "", ErrInvalidStationID
	}
	for _, c := range s {
		if c > unicode.MaxASCII || !(unicode.IsLetter(c) || unicode.IsDigit(c) || c == '-' || c == '_') {
			return "", fmt.Errorf("station id %w", ErrInvalidChars)
		}
	}
	return s, nil
}

func isAllowedRegionRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-':
		return true
	}
	return false
}
