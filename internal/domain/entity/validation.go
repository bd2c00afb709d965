package entity

import (
	"fmt"
	"net/url"
)

// maxURLLength bounds source URLs.
const maxURLLength = 2048

// ValidateURL checks that rawURL is an absolute http(s) URL with a host.
// Network level checks (private address ranges) happen at fetch time.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "url is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "url", Message: fmt.Sprintf("malformed url: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "url must use http or https scheme"}
	}
	if u.Host == "" {
		return &ValidationError{Field: "url", Message: "url must have a host"}
	}
	return nil
}
