package handlers

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/nijaru/yt-itinerary/errors"
	"github.com/nijaru/yt-itinerary/itinerary"
	"github.com/nijaru/yt-itinerary/middleware"
	"github.com/nijaru/yt-itinerary/transcript"
	"github.com/nijaru/yt-itinerary/utils"
	"github.com/nijaru/yt-itinerary/validation"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const exhaustedMessage = "Could not retrieve a transcript for this video: the caption source and every mirror failed. " +
	"The server is likely being rate limited; configure PROXY_URL to route caption requests through a proxy."

// TranscriptResolver yields the transcript text of a video.
type TranscriptResolver interface {
	Resolve(ctx context.Context, videoID string) (string, error)
}

// ItineraryGenerator turns a transcript into an itinerary.
type ItineraryGenerator interface {
	Generate(ctx context.Context, transcript string) (*itinerary.Result, error)
}

type Handler struct {
	resolver  TranscriptResolver
	generator ItineraryGenerator
	version   string
	started   time.Time
}

func New(resolver TranscriptResolver, generator ItineraryGenerator, version string) *Handler {
	return &Handler{
		resolver:  resolver,
		generator: generator,
		version:   version,
		started:   time.Now(),
	}
}

// Generate serves GET /api/generate?url=<video URL>.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.Generate"
	logger := middleware.GetLogger(r.Context())

	rawURL := validation.Normalize(r.URL.Query().Get("url"))
	if err := validation.ValidateURL(rawURL); err != nil {
		utils.RespondWithError(w, err)
		return
	}

	videoID, err := validation.ExtractVideoID(rawURL)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}
	logger = logger.WithField("video_id", videoID)

	text, err := h.resolver.Resolve(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, transcript.ErrExhausted) {
			utils.RespondWithError(w, apperrors.Unavailable(op, err, exhaustedMessage))
			return
		}
		utils.RespondWithError(w, apperrors.BadGateway(op, err, "Transcript lookup failed: "+err.Error()))
		return
	}
	logger.WithField("transcript_chars", len(text)).Info("Transcript resolved")

	result, err := h.generator.Generate(r.Context(), text)
	if err != nil {
		utils.RespondWithError(w, err)
		return
	}

	if !result.OK() {
		logger.WithField("error", result.Error).Warn("Itinerary generation produced no usable output")
		utils.RespondWithJSON(w, http.StatusOK, result)
		return
	}

	logger.Info("Itinerary generated")
	utils.RespondWithRawJSON(w, http.StatusOK, result.Itinerary)
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	logrus.WithField("path", r.URL.Path).Debug("Route not found")
	utils.HandleError(w, "Not Found", http.StatusNotFound)
}
