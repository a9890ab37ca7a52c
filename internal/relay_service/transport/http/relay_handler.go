package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/app"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

// backgroundTimeout bounds relays that continue after the webhook was acknowledged.
const backgroundTimeout = 30 * time.Second

// RelayOperations is implemented by *app.RelayService.
type RelayOperations interface {
	HandleInboundSMS(ctx context.Context, msg app.InboundSMS) error
	HandleThreadReply(ctx context.Context, ev chat.MessageEvent) error
	SearchDrivers(ctx context.Context, text string) (*chat.CommandResponse, error)
	ResolveDriverChoice(ctx context.Context, payload chat.InteractionPayload) (*chat.CommandResponse, error)
	OpenReplyDialog(ctx context.Context, payload chat.InteractionPayload) error
	SubmitReplyDialog(ctx context.Context, payload chat.InteractionPayload) error
	AuthorizeURL() string
	CompleteAuthorization(ctx context.Context, code string) (*domain.UserCredential, error)
}

type RelayHandler struct {
	relay         RelayOperations
	validate      *validator.Validate
	logger        *slog.Logger
	signingSecret string
	background    sync.WaitGroup
}

func NewRelayHandler(relay RelayOperations, validate *validator.Validate, signingSecret string, logger *slog.Logger) *RelayHandler {
	logger = logger.With("handler", "relay")
	if signingSecret == "" {
		logger.Warn("Slack signing secret not configured; chat requests are not verified")
	}
	return &RelayHandler{
		relay:         relay,
		validate:      validate,
		logger:        logger,
		signingSecret: signingSecret,
	}
}

// RegisterRoutes mounts the webhook, chat and OAuth endpoints.
func (h *RelayHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/sms", h.handleInboundSMS)
	r.Get("/", h.handleAuthorizeRedirect)
	r.Get("/auth", h.handleAuthCallback)

	r.Group(func(r chi.Router) {
		r.Use(SlackSignatureMiddleware(h.signingSecret, h.logger))
		r.Post("/events", h.handleEvents)
		r.Post("/reply", h.handleInteraction)
		r.Post("/smssend", h.handleSearchCommand)
	})
}

// Wait blocks until every acknowledged webhook has finished relaying.
func (h *RelayHandler) Wait() {
	h.background.Wait()
}

// runInBackground detaches fn from the request so the webhook can be answered immediately.
// Request-scoped values such as the request id are kept.
func (h *RelayHandler) runInBackground(r *http.Request, name string, fn func(ctx context.Context) error) {
	ctx := context.WithoutCancel(r.Context())
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "task", name)

	h.background.Add(1)
	backgroundRelaysInFlight.Inc()
	go func() {
		defer h.background.Done()
		defer backgroundRelaysInFlight.Dec()
		ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.ErrorContext(ctx, "Background relay failed", "error", err)
		}
	}()
}

func (h *RelayHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleInboundSMS acknowledges the carrier with 204 and relays the message afterwards.
func (h *RelayHandler) handleInboundSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Failed to parse inbound SMS form", "error", err)
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	req := inboundSMSFromForm(r.PostForm)
	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "Inbound SMS failed validation", "error", err, "from", req.From)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	logger.InfoContext(ctx, "Received inbound SMS", "from", req.From, "has_media", req.MediaURL != "")
	w.WriteHeader(http.StatusNoContent)

	msg := app.InboundSMS{From: req.From, Body: req.Body, MediaURL: req.MediaURL}
	h.runInBackground(r, "inbound_sms", func(ctx context.Context) error {
		return h.relay.HandleInboundSMS(ctx, msg)
	})
}

// handleEvents answers the URL verification handshake and relays thread replies.
func (h *RelayHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	// Requests are authenticated by the signing secret, not the deprecated verification token.
	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		logger.WarnContext(ctx, "Failed to decode event envelope", "error", err)
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "Invalid JSON format", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
		return
	case slackevents.CallbackEvent:
		msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
		if !ok || msg == nil {
			logger.DebugContext(ctx, "Ignoring callback event", "inner_type", event.InnerEvent.Type)
			w.WriteHeader(http.StatusOK)
			return
		}
		ev := *msg
		w.WriteHeader(http.StatusOK)
		h.runInBackground(r, "thread_reply", func(ctx context.Context) error {
			return h.relay.HandleThreadReply(ctx, ev)
		})
	default:
		logger.DebugContext(ctx, "Ignoring event envelope", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}

// handleSearchCommand resolves "<firstName> [text]" into driver choice buttons.
func (h *RelayHandler) handleSearchCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	req := searchCommandFromSlash(cmd)
	if err := h.validate.StructCtx(ctx, req); err != nil {
		writeJSON(w, http.StatusOK, chat.CommandResponse{ResponseType: chat.ResponseEphemeral, Text: "Usage: /smssend <first name>"})
		return
	}
	logger = logger.With("user_id", req.UserID)

	resp, err := h.relay.SearchDrivers(ctx, req.Text)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusOK, chat.CommandResponse{ResponseType: chat.ResponseEphemeral, Text: "Usage: /smssend <first name>"})
			return
		}
		logger.ErrorContext(ctx, "Driver search failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInteraction dispatches button clicks, message actions and dialog submissions.
func (h *RelayHandler) handleInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	raw := r.PostForm.Get("payload")
	if raw == "" {
		http.Error(w, "Missing payload", http.StatusBadRequest)
		return
	}
	var payload chat.InteractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logger.WarnContext(ctx, "Failed to decode interaction payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if payload.Type == slack.InteractionTypeDialogSubmission {
		payload.DialogSubmissionCallback.State = dialogStateFromPayload(raw)
	}
	logger = logger.With("type", payload.Type, "callback_id", payload.CallbackID, "user_id", payload.User.ID)

	switch {
	case payload.CallbackID == app.CallbackDriverChoice:
		resp, err := h.relay.ResolveDriverChoice(ctx, payload)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidPhone) {
				logger.WarnContext(ctx, "Invalid driver choice", "error", err)
				http.Error(w, "Invalid driver choice", http.StatusBadRequest)
				return
			}
			logger.ErrorContext(ctx, "Driver choice failed", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		writeJSON(w, http.StatusOK, resp)

	case payload.CallbackID == app.CallbackReplySMS && payload.Type == slack.InteractionTypeDialogSubmission:
		err := h.relay.SubmitReplyDialog(ctx, payload)
		if err != nil {
			if app.IsUserFacing(err) {
				writeJSON(w, http.StatusOK, chat.DialogErrors{Errors: []chat.DialogError{{
					Name:  app.DialogFieldBody,
					Error: h.userMessage(err),
				}}})
				return
			}
			logger.ErrorContext(ctx, "Dialog reply failed", "error", err)
		}
		w.WriteHeader(http.StatusOK)

	case payload.CallbackID == app.CallbackReplySMS:
		err := h.relay.OpenReplyDialog(ctx, payload)
		if err != nil {
			if app.IsUserFacing(err) {
				writeJSON(w, http.StatusOK, chat.CommandResponse{ResponseType: chat.ResponseEphemeral, Text: h.userMessage(err)})
				return
			}
			logger.ErrorContext(ctx, "Opening reply dialog failed", "error", err)
		}
		w.WriteHeader(http.StatusOK)

	default:
		logger.InfoContext(ctx, "Ignoring unsupported interaction")
		w.WriteHeader(http.StatusOK)
	}
}

func (h *RelayHandler) userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return "Authorize the SMS relay first: " + h.relay.AuthorizeURL()
	case errors.Is(err, domain.ErrNotFound):
		return "This only works with driver messages."
	case errors.Is(err, domain.ErrInvalidState):
		return "This reply form has expired. Open it again from the message."
	default:
		return "Type a message to send."
	}
}

func (h *RelayHandler) handleAuthorizeRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.relay.AuthorizeURL(), http.StatusFound)
}

// handleAuthCallback completes OAuth and stores the user's token.
func (h *RelayHandler) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	if denied := r.URL.Query().Get("error"); denied != "" {
		logger.InfoContext(ctx, "Authorization declined", "error", denied)
		http.Error(w, "Authorization was not granted", http.StatusBadRequest)
		return
	}

	cred, err := h.relay.CompleteAuthorization(ctx, r.URL.Query().Get("code"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			http.Error(w, "Missing authorization code", http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Authorization failed", "error", err)
		http.Error(w, "Authorization failed", http.StatusBadGateway)
		return
	}
	logger.InfoContext(ctx, "Authorization stored", "user_id", cred.UserID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Authorized. You can close this window."))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
