// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/Parsarf/aleev-ai-review-management/internal/domain"
)

// The handler layer sees the services through narrow interfaces so tests can
// stand in for them; the app services satisfy these as-is.
type ReplyCommands interface {
	Generate(ctx context.Context, actor domain.Actor, reviewID int64, tone string, crisisFlag bool) (domain.Reply, error)
	Approve(ctx context.Context, actor domain.Actor, replyID int64, finalText string) (domain.Reply, error)
	Send(ctx context.Context, actor domain.Actor, replyID int64, finalText string) (domain.Reply, error)
}

type IngestRunner interface {
	Run(ctx context.Context) domain.IngestReport
}

type RollupRunner interface {
	Run(ctx context.Context, day time.Time) domain.RollupReport
}

type Handlers struct {
	Replies ReplyCommands
	Ingest  IngestRunner
	Rollup  RollupRunner
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/v1/reviews/{reviewID}/reply", h.generateReply)
	s.mux.Post("/v1/replies/{replyID}/approve", h.approveReply)
	s.mux.Post("/v1/replies/{replyID}/send", h.sendReply)
	s.mux.Post("/v1/jobs/ingest", h.runIngest)
	s.mux.Post("/v1/jobs/rollup", h.runRollup)
}

// generateRequest's crisis flag lets a caller escalate a review the keyword
// list missed; it is OR-ed with the detector's own verdict.
type generateRequest struct {
	Tone       string `json:"tone"`
	CrisisFlag bool   `json:"crisis_flag"`
}

type finalTextRequest struct {
	FinalText string `json:"final_text"`
}

// replyResponse is the wire shape of a reply across all three lifecycle
// endpoints.
type replyResponse struct {
	ID         int64      `json:"id"`
	ReviewID   int64      `json:"review_id"`
	DraftText  string     `json:"draft_text"`
	FinalText  *string    `json:"final_text,omitempty"`
	Tone       string     `json:"tone"`
	Status     string     `json:"status"`
	Flagged    bool       `json:"flagged"`
	IsCrisis   bool       `json:"is_crisis"`
	Violations []string   `json:"violations,omitempty"`
	SentBy     *string    `json:"sent_by,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toReplyResponse(r domain.Reply) replyResponse {
	return replyResponse{
		ID:         r.ID,
		ReviewID:   r.ReviewID,
		DraftText:  r.DraftText,
		FinalText:  r.FinalText,
		Tone:       r.Tone,
		Status:     string(r.Status),
		Flagged:    r.Flagged,
		IsCrisis:   r.IsCrisis,
		Violations: r.Violations,
		SentBy:     r.SentBy,
		SentAt:     r.SentAt,
		CreatedAt:  r.CreatedAt,
	}
}

func (h *Handlers) generateReply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil || reviewID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "reviewID must be a positive number")
		return
	}
	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}

	reply, err := h.Replies.Generate(r.Context(), actor, reviewID, req.Tone, req.CrisisFlag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReplyResponse(reply))
}

func (h *Handlers) approveReply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	replyID, err := strconv.ParseInt(chi.URLParam(r, "replyID"), 10, 64)
	if err != nil || replyID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "replyID must be a positive number")
		return
	}
	var req finalTextRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}

	reply, err := h.Replies.Approve(r.Context(), actor, replyID, req.FinalText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReplyResponse(reply))
}

// sendReply answers 200 for both outcomes of a send attempt; the reply status
// in the body distinguishes SENT from FAILED.
func (h *Handlers) sendReply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	replyID, err := strconv.ParseInt(chi.URLParam(r, "replyID"), 10, 64)
	if err != nil || replyID <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "replyID must be a positive number")
		return
	}
	var req finalTextRequest
	if err := decodeBody(r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}

	reply, err := h.Replies.Send(r.Context(), actor, replyID, req.FinalText)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReplyResponse(reply))
}

func (h *Handlers) runIngest(w http.ResponseWriter, r *http.Request) {
	report := h.Ingest.Run(r.Context())
	status := http.StatusOK
	if !report.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}

func (h *Handlers) runRollup(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if ds := r.URL.Query().Get("date"); ds != "" {
		d, err := time.Parse("2006-01-02", ds)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	report := h.Rollup.Run(r.Context(), day)
	status := http.StatusOK
	if !report.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}

// requireActor pulls the acting user out of the gateway-injected headers. The
// upstream gateway owns authentication; this service only needs identity and
// tenant scope.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	userID := r.Header.Get("X-User-ID")
	bizID, err := strconv.ParseInt(r.Header.Get("X-Business-ID"), 10, 64)
	if userID == "" || err != nil || bizID <= 0 {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "X-User-ID and X-Business-ID headers are required")
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: userID, BusinessID: bizID}, true
}

// decodeBody tolerates an absent body so callers can POST without one.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	var rle *domain.RateLimitError
	switch {
	case errors.As(err, &rle):
		secs := int(math.Ceil(time.Until(rle.ResetAt).Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", err.Error())
	case errors.Is(err, domain.ErrReviewNotFound), errors.Is(err, domain.ErrReplyNotFound), errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrReplyExists), errors.Is(err, domain.ErrInvalidTransition):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrNoTextToSend):
		writeProblem(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	case errors.Is(err, domain.ErrGenerationFailed),
		errors.Is(err, domain.ErrAdapterAuth),
		errors.Is(err, domain.ErrAdapterUnavailable):
		writeProblem(w, http.StatusBadGateway, "Bad Gateway", err.Error())
	default:
		log.Error().Err(err).Msg("unhandled service error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}
