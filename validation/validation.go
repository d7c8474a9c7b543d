package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nijaru/yt-itinerary/errors"
)

// videoIDPattern matches an 11 character identifier after "v=" or a path slash.
var videoIDPattern = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// Normalize trims rawURL and assumes https when no scheme is given, so that
// pasted links such as "youtu.be/<id>" are accepted.
func Normalize(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || strings.Contains(rawURL, "://") {
		return rawURL
	}
	return "https://" + strings.TrimPrefix(rawURL, "//")
}

func ValidateURL(rawURL string) error {
	const op = "validation.ValidateURL"

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return errors.InvalidInput(op, nil, "url query parameter is required")
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return errors.InvalidInput(op, err, "invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.InvalidInput(op, nil, "URL must start with http or https")
	}

	if parsedURL.Host == "" {
		return errors.InvalidInput(op, nil, "URL must have a host")
	}

	return nil
}

// ExtractVideoID returns the first identifier found in rawURL.
func ExtractVideoID(rawURL string) (string, error) {
	const op = "validation.ExtractVideoID"

	m := videoIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", errors.InvalidInput(op, nil, "Could not extract a video ID from the URL")
	}
	return m[1], nil
}
