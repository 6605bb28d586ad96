package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"call-review-service/internal/api"
	"call-review-service/internal/app"
	"call-review-service/internal/observability/metrics"
	"call-review-service/internal/service/review"
)

// bodyOverhead covers the JSON around the base64 audio of a request.
const bodyOverhead = 1 << 20

// NewRouter constructs the HTTP router for the service. The review routes
// resolve application.Review per request, so the router can be built before
// the application has started.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(recordRequests(metrics.DefaultMetrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	s := &server{app: application, maxBody: maxBody(application)}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/merge", s.merge)
		r.Post("/validate", s.validate)
		r.Post("/review", s.review)

		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/issues", s.openIssues)
			r.Post("/issues/{issueID}/resolve", s.resolve)
			r.Delete("/", s.discard)
		})
	})

	return r
}

func maxBody(application *app.Application) int64 {
	limit := review.DefaultLimits().MaxAudioBytes
	if application.Cfg != nil && application.Cfg.Review.MaxAudioBytes > 0 {
		limit = application.Cfg.Review.MaxAudioBytes
	}
	// Two channels, base64 encoded.
	return 2*limit*4/3 + bodyOverhead
}

type server struct {
	app     *app.Application
	maxBody int64
}

func (s *server) handler(w http.ResponseWriter) (*review.Handler, bool) {
	if s.app.Review == nil || !s.app.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: "service not ready"})
		return nil, false
	}
	return s.app.Review, true
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Errorf("%w: %v", review.ErrLimitExceeded, err))
			return false
		}
		writeError(w, fmt.Errorf("%w: %v", api.ErrInvalidRequest, err))
		return false
	}
	return true
}

func (s *server) input(w http.ResponseWriter, r *http.Request) (review.Input, bool) {
	var req api.ReviewRequest
	if !s.decode(w, r, &req) {
		return review.Input{}, false
	}
	in, err := req.Input()
	if err != nil {
		writeError(w, err)
		return review.Input{}, false
	}
	return in, true
}

func (s *server) merge(w http.ResponseWriter, r *http.Request) {
	h, ok := s.handler(w)
	if !ok {
		return
	}
	in, ok := s.input(w, r)
	if !ok {
		return
	}
	conv, err := h.Merge(in.Logs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewMergeResponse(conv))
}

func (s *server) validate(w http.ResponseWriter, r *http.Request) {
	h, ok := s.handler(w)
	if !ok {
		return
	}
	in, ok := s.input(w, r)
	if !ok {
		return
	}
	res, err := h.Validate(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) review(w http.ResponseWriter, r *http.Request) {
	h, ok := s.handler(w)
	if !ok {
		return
	}
	in, ok := s.input(w, r)
	if !ok {
		return
	}
	res, err := h.Run(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) openIssues(w http.ResponseWriter, r *http.Request) {
	h, ok := s.handler(w)
	if !ok {
		return
	}
	open, err := h.Open(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, open)
}

func (s *server) resolve(w http.ResponseWriter, r *http.Request) {
	h, ok := s.handler(w)
	if !ok {
		return
	}
	var req api.ResolveRequest
	if !s.decode(w, r, &req) {
		return
	}
	runID := chi.URLParam(r, "runID")
	f, err := h.Resolve(runID, chi.URLParam(r, "issueID"), req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	open, err := h.Open(runID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ResolveResponse{Form: f, Open: open})
}

func (s *server) discard(w http.ResponseWriter, r *http.Request) {
	h, ok := s.handler(w)
	if !ok {
		return
	}
	n, err := h.Discard(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DiscardResponse{Dismissed: n})
}

func writeError(w http.ResponseWriter, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// recordRequests records every request under its route pattern.
func recordRequests(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = r.Method + " " + p
				}
			}
			m.RecordRequest("http", route, fmt.Sprint(ww.Status()), time.Since(start).Seconds())
		})
	}
}
