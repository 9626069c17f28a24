package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/checkout"
	"tradegate/internal/fees"
	id "tradegate/pkg/domain"
	dErrors "tradegate/pkg/domain-errors"
	"tradegate/pkg/platform/httputil"
	"tradegate/pkg/requestcontext"
)

// Service defines the checkout operations the handler needs.
type Service interface {
	CreateOrder(ctx context.Context, userID id.UserID, side checkout.Side, in fees.Inputs) (*checkout.Order, error)
	GetOrder(ctx context.Context, userID id.UserID, orderID id.OrderID) (*checkout.Order, error)
	UpdateOrder(ctx context.Context, userID id.UserID, orderID id.OrderID, u checkout.Update) (*checkout.Order, error)
	Quote(ctx context.Context, userID id.UserID, orderID id.OrderID) (*checkout.Order, error)
	Authorize(ctx context.Context, userID id.UserID, orderID id.OrderID) (*checkout.Authorization, error)
	ConfirmPayment(ctx context.Context, orderID id.OrderID, token string) (*checkout.Order, error)
	Abandon(ctx context.Context, userID id.UserID, orderID id.OrderID) (*checkout.Order, error)
}

// Handler serves order checkout endpoints for authenticated users.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a checkout handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the user-facing checkout endpoints. The router is expected
// to authenticate the user.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.HandleCreate)
	r.Get("/orders/{id}", h.HandleGet)
	r.Patch("/orders/{id}", h.HandleUpdate)
	r.Post("/orders/{id}/quote", h.HandleQuote)
	r.Post("/orders/{id}/authorize", h.HandleAuthorize)
	r.Post("/orders/{id}/abandon", h.HandleAbandon)
}

// RegisterPaymentCallbacks mounts the endpoint the payment collaborator calls
// after capture. It must sit behind the payment system's credential, never a
// user token.
func (h *Handler) RegisterPaymentCallbacks(r chi.Router) {
	r.Post("/orders/{id}/payment-confirmation", h.HandleConfirmPayment)
}

// HandleCreate handles POST /orders.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[CreateOrderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	order, err := h.service.CreateOrder(ctx, userID, req.ParsedSide(), req.Inputs())
	if err != nil {
		h.logFailure(ctx, "failed to create order", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// HandleGet handles GET /orders/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, orderID, ok := requireOrder(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(ctx, userID, orderID)
	if err != nil {
		h.logFailure(ctx, "failed to load order", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// HandleUpdate handles PATCH /orders/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	userID, orderID, ok := requireOrder(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateOrderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	order, err := h.service.UpdateOrder(ctx, userID, orderID, req.Update())
	if err != nil {
		h.logFailure(ctx, "failed to update order", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// HandleQuote handles POST /orders/{id}/quote.
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, orderID, ok := requireOrder(w, r)
	if !ok {
		return
	}

	order, err := h.service.Quote(ctx, userID, orderID)
	if err != nil {
		h.logFailure(ctx, "fee quote rejected", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// HandleAuthorize handles POST /orders/{id}/authorize. A repeated call for
// unchanged inputs returns the original authorization.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, orderID, ok := requireOrder(w, r)
	if !ok {
		return
	}

	auth, err := h.service.Authorize(ctx, userID, orderID)
	if err != nil {
		h.logFailure(ctx, "order authorization rejected", userID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "order authorized",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"order_id", orderID,
		"payable", fees.Money(auth.Payable),
	)
	httputil.WriteJSON(w, http.StatusOK, toAuthorizationResponse(auth))
}

// HandleConfirmPayment handles POST /orders/{id}/payment-confirmation.
func (h *Handler) HandleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ConfirmPaymentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	order, err := h.service.ConfirmPayment(ctx, orderID, req.Token)
	if err != nil {
		h.logger.WarnContext(ctx, "payment confirmation rejected",
			"request_id", requestID,
			"order_id", orderID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "order placed",
		"request_id", requestID,
		"order_id", orderID,
		"payment_reference", req.PaymentReference,
	)
	httputil.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// HandleAbandon handles POST /orders/{id}/abandon.
func (h *Handler) HandleAbandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, orderID, ok := requireOrder(w, r)
	if !ok {
		return
	}

	order, err := h.service.Abandon(ctx, userID, orderID)
	if err != nil {
		h.logFailure(ctx, "failed to abandon order", userID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

func requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func requireOrder(w http.ResponseWriter, r *http.Request) (id.UserID, id.OrderID, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return id.UserID{}, id.OrderID{}, false
	}
	orderID, err := id.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, id.OrderID{}, false
	}
	return userID, orderID, true
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
