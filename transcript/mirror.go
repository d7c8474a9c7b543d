package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Mirrors is an ordered, read-only list of mirror base URLs.
type Mirrors struct {
	urls []string
}

func NewMirrors(urls ...string) Mirrors {
	m := Mirrors{urls: make([]string, 0, len(urls))}
	for _, u := range urls {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			m.urls = append(m.urls, u)
		}
	}
	return m
}

func (m Mirrors) Len() int { return len(m.urls) }

func (m Mirrors) At(i int) string { return m.urls[i] }

func (m Mirrors) All() []string { return append([]string(nil), m.urls...) }

const maxCaptionSize = 4 << 20

type videoMetadata struct {
	Captions []mirrorCaption `json:"captions"`
}

// mirrorCaption accepts both the short field names and the names mirrors
// actually emit (label, languageCode).
type mirrorCaption struct {
	Language     string `json:"language"`
	Label        string `json:"label"`
	Code         string `json:"code"`
	LanguageCode string `json:"languageCode"`
	URL          string `json:"url"`
}

func (c mirrorCaption) language() string {
	if c.Language != "" {
		return c.Language
	}
	return c.Label
}

func (c mirrorCaption) code() string {
	if c.Code != "" {
		return c.Code
	}
	return c.LanguageCode
}

func (c mirrorCaption) isEnglish() bool {
	return c.language() == "English" || strings.HasPrefix(c.code(), "en")
}

func selectEnglishCaption(captions []mirrorCaption) (mirrorCaption, bool) {
	for _, c := range captions {
		if c.isEnglish() && c.URL != "" {
			return c, true
		}
	}
	return mirrorCaption{}, false
}

type statusError struct {
	URL        string
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// fetchFromMirror runs the metadata, track selection, payload and parse steps
// against one mirror. Any failure is returned for the caller to log.
func (r *Resolver) fetchFromMirror(ctx context.Context, base, videoID string) (string, error) {
	metaURL := base + "/api/v1/videos/" + url.PathEscape(videoID)
	body, err := r.mirrorGet(ctx, metaURL, "application/json")
	if err != nil {
		return "", errors.Wrap(err, "metadata")
	}

	var meta videoMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return "", errors.Wrap(err, "decode metadata")
	}

	caption, ok := selectEnglishCaption(meta.Captions)
	if !ok {
		return "", errors.Errorf("no English caption among %d tracks", len(meta.Captions))
	}

	payload, err := r.mirrorGet(ctx, resolveCaptionURL(base, caption.URL), "text/vtt")
	if err != nil {
		return "", errors.Wrap(err, "caption payload")
	}

	text := ParseCues(string(payload))
	if text == "" {
		return "", errors.New("caption payload has no text")
	}
	return text, nil
}

// mirrorGet performs one bounded GET; non-2xx responses are errors.
func (r *Resolver) mirrorGet(ctx context.Context, target, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.mirrorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{URL: target, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxCaptionSize))
}

func resolveCaptionURL(base, captionURL string) string {
	if strings.HasPrefix(captionURL, "http://") || strings.HasPrefix(captionURL, "https://") {
		return captionURL
	}
	if !strings.HasPrefix(captionURL, "/") {
		captionURL = "/" + captionURL
	}
	return base + captionURL
}
