// Package transcript turns a video identifier into plain transcript text.
//
// The native caption source is tried first. When it fails, each configured
// mirror is tried in order until one yields text. Only running out of sources
// is reported as an error.
package transcript

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nijaru/yt-itinerary/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrExhausted is returned when the primary source and every mirror failed.
var ErrExhausted = errors.New("service unavailable, all transcript strategies exhausted")

const (
	SourcePrimary = "primary"
	SourceMirror  = "mirror"

	DefaultMirrorTimeout = 10 * time.Second
)

type State string

const (
	StateIdle          State = "idle"
	StateTryingPrimary State = "trying_primary"
	StateTryingMirror  State = "trying_mirror"
	StateSuccess       State = "success"
	StateAllExhausted  State = "all_exhausted"
)

type Resolver struct {
	primary       Primary
	mirrors       Mirrors
	client        *http.Client
	mirrorTimeout time.Duration
	metrics       *metrics.Registry
	logger        *logrus.Logger
}

type Option func(*Resolver)

// WithHTTPClient sets the client used for mirror requests.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

func WithMirrorTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.mirrorTimeout = d
	}
}

func WithMetrics(m *metrics.Registry) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver builds a resolver. primary may be nil, in which case only the
// mirrors are consulted.
func NewResolver(primary Primary, mirrors Mirrors, opts ...Option) *Resolver {
	r := &Resolver{
		primary:       primary,
		mirrors:       mirrors,
		client:        http.DefaultClient,
		mirrorTimeout: DefaultMirrorTimeout,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the transcript for videoID, or ErrExhausted.
func (r *Resolver) Resolve(ctx context.Context, videoID string) (string, error) {
	logger := r.logger.WithField("video_id", videoID)
	logger.WithField("state", StateIdle).Debug("Resolving transcript")

	if text, err := r.tryPrimary(ctx, videoID); err == nil {
		logger.WithFields(logrus.Fields{
			"state":  StateSuccess,
			"source": SourcePrimary,
		}).Info("Transcript resolved")
		return text, nil
	} else {
		logger.WithFields(logrus.Fields{
			"state":  StateTryingPrimary,
			"source": SourcePrimary,
			"error":  err,
		}).Warn("Primary transcript source failed, falling back to mirrors")
	}

	for i := 0; i < r.mirrors.Len(); i++ {
		base := r.mirrors.At(i)
		mirrorLogger := logger.WithFields(logrus.Fields{
			"state":  StateTryingMirror,
			"source": SourceMirror,
			"mirror": base,
			"index":  i,
		})

		r.metrics.TranscriptAttempt(SourceMirror)
		text, err := r.fetchFromMirror(ctx, base, videoID)
		if err != nil {
			r.metrics.TranscriptResult(SourceMirror, metrics.OutcomeFailure)
			mirrorLogger.WithError(err).Warn("Mirror failed")
			continue
		}

		r.metrics.TranscriptResult(SourceMirror, metrics.OutcomeSuccess)
		mirrorLogger.WithField("state", StateSuccess).Info("Transcript resolved")
		return text, nil
	}

	logger.WithFields(logrus.Fields{
		"state":   StateAllExhausted,
		"mirrors": r.mirrors.Len(),
	}).Error("All transcript strategies exhausted")
	return "", ErrExhausted
}

func (r *Resolver) tryPrimary(ctx context.Context, videoID string) (string, error) {
	if r.primary == nil {
		return "", errors.New("no primary source configured")
	}

	r.metrics.TranscriptAttempt(SourcePrimary)
	fragments, err := r.primary.Fetch(ctx, videoID)
	if err != nil {
		r.metrics.TranscriptResult(SourcePrimary, metrics.OutcomeFailure)
		return "", err
	}

	text := JoinFragments(fragments)
	if strings.TrimSpace(text) == "" {
		r.metrics.TranscriptResult(SourcePrimary, metrics.OutcomeEmpty)
		return "", errors.New("primary source returned no text")
	}

	r.metrics.TranscriptResult(SourcePrimary, metrics.OutcomeSuccess)
	return text, nil
}
