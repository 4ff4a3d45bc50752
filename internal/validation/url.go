package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLValidationError reports why a user-supplied link was rejected.
type URLValidationError struct {
	Field   string
	Message string
	URL     string
}

func (e URLValidationError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// ValidateURL accepts an absolute http(s) URL. Empty input is allowed; the
// caller decides whether the field is required.
func ValidateURL(raw, field string, requireHTTPS bool) error {
	if raw == "" {
		return nil
	}

	reject := func(message string) error {
		return URLValidationError{Field: field, Message: message, URL: raw}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return reject("invalid URL format")
	}
	if parsed.Scheme == "" {
		return reject("URL must include a scheme (http:// or https://)")
	}
	if parsed.Host == "" {
		return reject("URL must include a host")
	}

	switch scheme := strings.ToLower(parsed.Scheme); {
	case requireHTTPS && scheme != "https":
		return reject("URL must use HTTPS")
	case scheme != "http" && scheme != "https":
		return reject("URL scheme must be http or https")
	}
	return nil
}

// ValidateOrigin accepts a CORS origin: scheme and host only.
func ValidateOrigin(raw string) error {
	if raw == "*" {
		return nil
	}
	if err := ValidateURL(raw, "origin", false); err != nil {
		return err
	}
	parsed, _ := url.Parse(raw)
	if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return URLValidationError{Field: "origin", Message: "origin must not contain a path, query or fragment", URL: raw}
	}
	return nil
}
