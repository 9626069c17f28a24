package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/verification"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
	"tradegate/pkg/requestcontext"
)

// Service defines the verification operations the handler needs.
type Service interface {
	Start(ctx context.Context, userID id.UserID) (*verification.Session, bool, error)
	Get(ctx context.Context, userID id.UserID) (*verification.Session, error)
	CompleteStep(ctx context.Context, userID id.UserID, index int, input verification.StepInput) (*verification.Session, error)
}

// Handler serves the KYC workflow endpoints. Routes expect an authenticated
// user in the request context.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verification", h.HandleStart)
	r.Get("/verification", h.HandleGet)
	r.Get("/verification/steps/{index}", h.HandleGetStep)
	r.Post("/verification/steps/{index}", h.HandleCompleteStep)
}

// HandleStart handles POST /verification.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	session, created, err := h.service.Start(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to start verification", userID, err)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toSessionResponse(session))
}

// HandleGet handles GET /verification.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	session, err := h.service.Get(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load verification", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

// HandleGetStep handles GET /verification/steps/{index}. Completed steps are
// returned read-only with their redacted summary.
func (h *Handler) HandleGetStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}

	session, err := h.service.Get(ctx, userID)
	if err != nil {
		h.logFailure(ctx, "failed to load verification", userID, err)
		httputil.WriteError(w, err)
		return
	}
	step, err := session.Step(index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStepResponse(step))
}

// HandleCompleteStep handles POST /verification/steps/{index}.
func (h *Handler) HandleCompleteStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	index, ok := stepIndex(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CompleteStepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	session, err := h.service.CompleteStep(ctx, userID, index, req.Input())
	if err != nil {
		h.logFailure(ctx, "verification step rejected", userID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification step completed",
		"request_id", requestID,
		"user_id", userID,
		"step", verification.StepKind(index).String(),
		"complete", session.IsComplete(),
	)
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(session))
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func stepIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "step index must be an integer").
			WithDetail("index", "0-6", raw))
		return 0, false
	}
	return index, true
}

func (h *Handler) logFailure(ctx context.Context, msg string, userID id.UserID, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"error", err,
	)
}
