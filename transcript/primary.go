package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Fragment is one timed piece of caption text, in seconds.
type Fragment struct {
	Text     string
	Start    float64
	Duration float64
}

// Primary is the platform's native caption capability.
type Primary interface {
	Fetch(ctx context.Context, videoID string) ([]Fragment, error)
}

// PrimaryFunc adapts a function to Primary.
type PrimaryFunc func(ctx context.Context, videoID string) ([]Fragment, error)

func (f PrimaryFunc) Fetch(ctx context.Context, videoID string) ([]Fragment, error) {
	return f(ctx, videoID)
}

const (
	youTubeBaseURL   = "https://www.youtube.com"
	playerRespMarker = "ytInitialPlayerResponse = "
	maxWatchPageSize = 6 << 20
	maxTimedTextSize = 2 << 20
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// YouTube reads captions straight from youtube.com: the watch page carries the
// caption track list, and each track is a timed-text XML document.
type YouTube struct {
	BaseURL string
	client  *http.Client
}

func NewYouTube(client *http.Client) *YouTube {
	if client == nil {
		client = http.DefaultClient
	}
	return &YouTube{BaseURL: youTubeBaseURL, client: client}
}

// NewProxyClient returns an HTTP client that sends every request through
// proxyURL. An empty proxyURL yields a client without a proxy.
func NewProxyClient(proxyURL string) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse proxy url")
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport}, nil
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for auto-generated
}

type timedText struct {
	Lines []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Text  string  `xml:",chardata"`
	} `xml:"text"`
}

func (y *YouTube) Fetch(ctx context.Context, videoID string) ([]Fragment, error) {
	tracks, err := y.captionTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}

	track, ok := pickEnglishTrack(tracks)
	if !ok {
		return nil, errors.New("no English caption track")
	}

	return y.timedText(ctx, track.BaseURL)
}

func (y *YouTube) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	body, err := y.get(ctx, y.BaseURL+"/watch?v="+url.QueryEscape(videoID), maxWatchPageSize)
	if err != nil {
		return nil, errors.Wrap(err, "watch page")
	}

	idx := strings.Index(string(body), playerRespMarker)
	if idx < 0 {
		return nil, errors.New("player response not found in watch page")
	}
	raw := extractJSONObject(body[idx+len(playerRespMarker):])
	if raw == nil {
		return nil, errors.New("player response is not a JSON object")
	}

	var resp playerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, "decode player response")
	}
	if resp.Captions == nil {
		if resp.PlayabilityStatus != nil && resp.PlayabilityStatus.Reason != "" {
			return nil, errors.Errorf("captions unavailable: %s", resp.PlayabilityStatus.Reason)
		}
		return nil, errors.New("no captions in player response")
	}

	tracks := resp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, errors.New("no caption tracks")
	}
	return tracks, nil
}

func (y *YouTube) timedText(ctx context.Context, trackURL string) ([]Fragment, error) {
	if strings.HasPrefix(trackURL, "/") {
		trackURL = y.BaseURL + trackURL
	}

	body, err := y.get(ctx, trackURL, maxTimedTextSize)
	if err != nil {
		return nil, errors.Wrap(err, "timed text")
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, errors.Wrap(err, "parse timed text")
	}

	fragments := make([]Fragment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		fragments = append(fragments, Fragment{Text: text, Start: line.Start, Duration: line.Dur})
	}
	if len(fragments) == 0 {
		return nil, errors.New("timed text has no fragments")
	}
	return fragments, nil
}

func (y *YouTube) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{URL: target, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}

// pickEnglishTrack prefers a manual English track over an auto-generated one.
func pickEnglishTrack(tracks []captionTrack) (captionTrack, bool) {
	var auto *captionTrack
	for i, t := range tracks {
		if !strings.HasPrefix(strings.ToLower(t.LanguageCode), "en") {
			continue
		}
		if t.Kind != "asr" {
			return t, true
		}
		if auto == nil {
			auto = &tracks[i]
		}
	}
	if auto != nil {
		return *auto, true
	}
	return captionTrack{}, false
}

// extractJSONObject returns the balanced JSON object at the start of b.
func extractJSONObject(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// JoinFragments concatenates fragment texts with single spaces.
func JoinFragments(fragments []Fragment) string {
	texts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		texts = append(texts, f.Text)
	}
	return strings.Join(texts, " ")
}
