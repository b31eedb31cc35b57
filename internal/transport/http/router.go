package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"quiz-readiness-service/internal/app"
	"quiz-readiness-service/internal/domain"
)

// Handler exposes the attempt, readiness and standings use cases over HTTP.
type Handler struct {
	service *app.AttemptService
	auth    *Authenticator
}

// NewRouter wires every route. auth may be nil to run without bearer tokens;
// hub may be nil to disable the websocket feed.
func NewRouter(service *app.AttemptService, hub *app.BenchmarkHub, auth *Authenticator) http.Handler {
	h := &Handler{service: service, auth: auth}

	router := mux.NewRouter()
	router.Use(logRequests)
	if auth != nil {
		router.Use(auth.WithAuth)
	}

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/quizzes/{id}", h.getQuiz).Methods(http.MethodGet)
	router.HandleFunc("/users/{userId}/readiness/{specializationId}", h.getReadiness).Methods(http.MethodGet)
	router.HandleFunc("/specializations/{id}/standings", h.getStandings).Methods(http.MethodGet)
	if hub != nil {
		router.HandleFunc("/ws/standings", NewStandingsFeed(service, hub).ServeWS).Methods(http.MethodGet)
	}

	attempts := router.NewRoute().Subrouter()
	if auth != nil {
		attempts.Use(RequireAuth)
	}
	attempts.HandleFunc("/quizzes/{id}/start", h.startAttempt).Methods(http.MethodPost)
	attempts.HandleFunc("/attempts/{id}/submit", h.submitAttempt).Methods(http.MethodPost)
	attempts.HandleFunc("/attempts/{id}", h.getAttempt).Methods(http.MethodGet)
	attempts.HandleFunc("/attempts/{id}/results", h.getResults).Methods(http.MethodGet)

	return router
}

type startRequest struct {
	UserID string `json:"userId"`
}

type submitRequest struct {
	// Answers is either {"questionId": "optionId"} or [{"questionId", "optionId"}].
	Answers json.RawMessage `json:"answers"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.service.GetQuiz(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) startAttempt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}
	}

	if uid, ok := UserIDFromContext(r.Context()); ok {
		if req.UserID == "" {
			req.UserID = uid
		}
		if req.UserID != uid {
			writeError(w, domain.ErrForbidden)
			return
		}
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "userId is required"})
		return
	}

	attempt, err := h.service.StartAttempt(r.Context(), req.UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *Handler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["id"]
	if err := h.authorizeAttempt(r, attemptID); err != nil {
		writeError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed body", domain.ErrInvalidSubmission))
		return
	}
	submission, err := decodeAnswers(req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.SubmitAttempt(r.Context(), attemptID, submission)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["id"]
	if err := h.authorizeAttempt(r, attemptID); err != nil {
		writeError(w, err)
		return
	}
	attempt, err := h.service.GetAttempt(r.Context(), attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) getResults(w http.ResponseWriter, r *http.Request) {
	attemptID := mux.Vars(r)["id"]
	if err := h.authorizeAttempt(r, attemptID); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.AttemptResult(r.Context(), attemptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) getReadiness(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	readiness, err := h.service.Readiness(r.Context(), vars["userId"], vars["specializationId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readiness)
}

func (h *Handler) getStandings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	snaps, err := h.service.Standings(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if snaps == nil {
		snaps = []domain.PeerBenchmarkSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// authorizeAttempt checks the caller owns the attempt when auth is enabled.
func (h *Handler) authorizeAttempt(r *http.Request, attemptID string) error {
	uid, ok := UserIDFromContext(r.Context())
	if h.auth == nil || !ok {
		return nil
	}
	attempt, err := h.service.GetAttempt(r.Context(), attemptID)
	if err != nil {
		return err
	}
	if attempt.UserID != uid {
		return domain.ErrForbidden
	}
	return nil
}

func decodeAnswers(raw json.RawMessage) (domain.Submission, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: answers are required", domain.ErrInvalidSubmission)
	}

	var list []domain.QuestionAnswer
	switch raw[0] {
	case '{':
		pairs, err := decodeAnswerObject(raw)
		if err != nil {
			return nil, err
		}
		list = pairs
	case '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: malformed answer list", domain.ErrInvalidSubmission)
		}
	default:
		return nil, fmt.Errorf("%w: answers must be an object or a list", domain.ErrInvalidSubmission)
	}
	return app.SubmissionFromList(list)
}

// decodeAnswerObject walks {"questionId": "optionId", ...} key by key so a
// repeated question is seen instead of overwritten.
func decodeAnswerObject(raw json.RawMessage) ([]domain.QuestionAnswer, error) {
	malformed := fmt.Errorf("%w: malformed answer object", domain.ErrInvalidSubmission)

	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, malformed
	}
	var out []domain.QuestionAnswer
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed
		}
		questionID, ok := tok.(string)
		if !ok {
			return nil, malformed
		}
		var optionID string
		if err := dec.Decode(&optionID); err != nil {
			return nil, fmt.Errorf("%w: answer for %s must be an option id", domain.ErrInvalidSubmission, questionID)
		}
		out = append(out, domain.QuestionAnswer{QuestionID: questionID, OptionID: optionID})
	}
	if _, err := dec.Token(); err != nil {
		return nil, malformed
	}
	return out, nil
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSubmission):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyFinalized):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrContention):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.RequestURI, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
