package scanner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
)

// identifierKeys are the JSON fields that can carry a package identifier,
// in order of preference.
var identifierKeys = []string{"id", "package_id", "packageId", "short_code", "shortCode", "code"}

var trackingPathPattern = regexp.MustCompile(`(?:^|/)track/([^/?#]+)/?(?:[?#].*)?$`)

// DefaultNoiseLiterals are strings camera decoders emit for empty frames
var DefaultNoiseLiterals = []string{"null", "undefined", "nan", "[object object]"}

// ExtractIdentifier turns raw decoded text into the code to look up. It
// tries a JSON payload, then a tracking URL, then the trimmed text itself.
// Noise and anything shorter than minLen is rejected with ErrValidation.
func ExtractIdentifier(raw string, minLen int, noise []string) (string, error) {
	text := strings.TrimSpace(raw)
	if err := checkCandidate(text, minLen, noise); err != nil {
		return "", err
	}

	code := text
	if id, ok := fromJSON(text); ok {
		code = id
	} else if id, ok := fromTrackingURL(text); ok {
		code = id
	}

	if err := checkCandidate(code, minLen, noise); err != nil {
		return "", err
	}
	return code, nil
}

func checkCandidate(s string, minLen int, noise []string) error {
	if len([]rune(s)) < minLen {
		return ierr.NewErrorf("decoded text %q is shorter than %d characters", s, minLen).
			Mark(ierr.ErrValidation)
	}
	for _, n := range noise {
		if strings.EqualFold(s, n) {
			return ierr.NewErrorf("decoded text %q is a decoder artifact", s).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

func fromJSON(text string) (string, bool) {
	if !strings.HasPrefix(text, "{") {
		return "", false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return "", false
	}
	for _, key := range identifierKeys {
		switch v := obj[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		case float64:
			return fmt.Sprintf("%v", v), true
		}
	}
	return "", false
}

func fromTrackingURL(text string) (string, bool) {
	m := trackingPathPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
