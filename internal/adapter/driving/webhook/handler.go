// Package webhook is the HTTP driving adapter that turns GitHub issue-comment
// deliveries into tracker events on the bridge's stream.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/belst/discordissues/internal/domain/model"
	"github.com/belst/discordissues/internal/domain/port/driven"
)

// Pinger reports storage liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler accepts GitHub webhook deliveries. Recognized-but-ignored payloads
// are acknowledged with 200 so GitHub's delivery bookkeeping is not disrupted
// by business-logic decisions; only malformed input gets a 4xx.
//
// Payload signature verification is not implemented; bind the listener to
// loopback behind a verifying proxy if the endpoint is reachable publicly.
type Handler struct {
	store    driven.CorrelationStore
	publish  func(model.Event)
	botLogin string
	db       Pinger
	logger   *slog.Logger
}

// NewHandler creates a Handler. botLogin is the tracker identity the bridge
// comments as; deliveries authored by it are dropped to prevent echo loops.
func NewHandler(store driven.CorrelationStore, publish func(model.Event), botLogin string, db Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		publish:  publish,
		botLogin: botLogin,
		db:       db,
		logger:   logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", h.HandleDelivery)
	mux.HandleFunc("GET /healthz", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoverPanics(logger, mux)
	wrapped = logRequests(logger, wrapped)

	return wrapped
}

// issueCommentPayload is the subset of GitHub's issue_comment event the
// bridge reads.
type issueCommentPayload struct {
	Action  string `json:"action"`
	Comment struct {
		User struct {
			Login string `json:"login"`
		} `json:"user"`
		Body    string `json:"body"`
		HTMLURL string `json:"html_url"`
	} `json:"comment"`
	Issue struct {
		Number int `json:"number"`
	} `json:"issue"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// HandleDelivery processes one webhook delivery. The 200 response never waits
// on chat-side forwarding; the event is queued and handled asynchronously.
func (h *Handler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	var payload issueCommentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	if payload.Action == "" || payload.Issue.Number == 0 || payload.Repository.FullName == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if payload.Action != "created" {
		h.logger.Debug("ignoring webhook action", "action", payload.Action)
		writeJSON(w, http.StatusOK, ackResponse{Status: "ignored"})
		return
	}

	if payload.Comment.User.Login == h.botLogin {
		// A comment the bridge posted itself; forwarding it back would loop.
		writeJSON(w, http.StatusOK, ackResponse{Status: "ignored"})
		return
	}

	repo := payload.Repository.FullName
	threadID, err := h.store.GetThread(r.Context(), repo, payload.Issue.Number)
	if err != nil {
		h.logger.Error("correlation lookup failed", "repo", repo, "issue", payload.Issue.Number, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if threadID == "" {
		// Not an issue opened through the bridge; acknowledge and move on.
		h.logger.Info("no thread for issue", "repo", repo, "issue", payload.Issue.Number)
		writeJSON(w, http.StatusOK, ackResponse{Status: "ignored"})
		return
	}

	h.publish(model.TrackerCommentEvent{
		ThreadID:    threadID,
		Repo:        repo,
		IssueNumber: payload.Issue.Number,
		Author:      payload.Comment.User.Login,
		Body:        payload.Comment.Body,
		URL:         payload.Comment.HTMLURL,
	})

	writeJSON(w, http.StatusOK, ackResponse{Status: "accepted"})
}

// Health reports process and storage liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded"})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
