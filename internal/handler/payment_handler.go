package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/dto"
	"github.com/webdevsha/permitakaun/internal/gateway"
	"github.com/webdevsha/permitakaun/internal/service"
	"github.com/webdevsha/permitakaun/pkg/logger"
	"github.com/webdevsha/permitakaun/pkg/middleware"
	"github.com/webdevsha/permitakaun/pkg/response"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the signed webhook payload read into memory
const maxWebhookBody = 64 << 10

// CallbackParser normalizes a form-encoded gateway callback
type CallbackParser interface {
	ParseCallback(form url.Values) (*domain.PaymentNotification, error)
}

// WebhookParser verifies and normalizes a signed webhook
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*domain.PaymentNotification, error)
}

// PaymentHandler handles payment initiation, gateway callbacks and ledger review
type PaymentHandler struct {
	paymentService        service.PaymentService
	reconciliationService service.ReconciliationService
	subscriptionService   service.SubscriptionService
	callbacks             CallbackParser
	webhooks              WebhookParser
}

// NewPaymentHandler creates a new PaymentHandler; a nil webhook parser disables the Stripe webhook
func NewPaymentHandler(
	paymentService service.PaymentService,
	reconciliationService service.ReconciliationService,
	subscriptionService service.SubscriptionService,
	callbacks CallbackParser,
	webhooks WebhookParser,
) *PaymentHandler {
	return &PaymentHandler{
		paymentService:        paymentService,
		reconciliationService: reconciliationService,
		subscriptionService:   subscriptionService,
		callbacks:             callbacks,
		webhooks:              webhooks,
	}
}

// Callback reconciles a bill gateway notification
// POST /api/v1/payments/callback
func (h *PaymentHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, dto.CallbackResponse{Success: false, Error: MsgInvalidInput})
		return
	}

	n, err := h.callbacks.ParseCallback(c.Request.PostForm)
	if err != nil {
		logger.Get().WarnContext(ctx, "rejected payment callback", zap.Error(err))
		status := http.StatusBadRequest
		if errors.Is(err, gateway.ErrInvalidSignature) {
			status = http.StatusUnauthorized
		}
		c.JSON(status, dto.CallbackResponse{Success: false, Error: MsgInvalidInput})
		return
	}

	h.reconcile(c, n)
}

// StripeWebhook reconciles a signed Stripe Checkout event
// POST /api/v1/payments/webhook/stripe
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	if h.webhooks == nil {
		c.JSON(http.StatusNotFound, response.NotFound(""))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.CallbackResponse{Success: false, Error: MsgInvalidInput})
		return
	}

	n, err := h.webhooks.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, gateway.ErrUnhandledEvent):
		c.JSON(http.StatusOK, dto.IgnoredResponse{Status: "ignored"})
		return
	case errors.Is(err, gateway.ErrInvalidSignature):
		logger.Get().WarnContext(ctx, "rejected webhook signature", zap.Error(err))
		c.JSON(http.StatusUnauthorized, dto.CallbackResponse{Success: false, Error: MsgInvalidInput})
		return
	case err != nil:
		logger.Get().WarnContext(ctx, "malformed webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.CallbackResponse{Success: false, Error: MsgInvalidInput})
		return
	}

	h.reconcile(c, n)
}

func (h *PaymentHandler) reconcile(c *gin.Context, n *domain.PaymentNotification) {
	middleware.SetAuditResource(c, "payment", n.ProviderID)

	result, err := h.reconciliationService.HandleNotification(c.Request.Context(), n)
	if err != nil {
		code, message, _ := describeError(err)
		c.JSON(response.GetHTTPStatus(code), dto.CallbackResponse{Success: false, Error: message})
		return
	}

	if result.Ignored {
		c.JSON(http.StatusOK, dto.IgnoredResponse{Status: "ignored"})
		return
	}
	c.JSON(http.StatusOK, dto.CallbackResponse{Success: true, Type: result.Type})
}

// InitiateRent starts a rent payment for the caller's rental
// POST /api/v1/payments/rent
func (h *PaymentHandler) InitiateRent(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var req dto.RentPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.paymentService.InitiateRentPayment(c.Request.Context(), who, req.RentalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// InitiateSubscription starts a plan purchase
// POST /api/v1/payments/subscription
func (h *PaymentHandler) InitiateSubscription(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var req dto.SubscriptionPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.paymentService.InitiateSubscriptionPayment(c.Request.Context(), who, req.PlanType)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// InitiatePublic starts a payment without login
// POST /api/v1/public/payments
func (h *PaymentHandler) InitiatePublic(c *gin.Context) {
	var req dto.PublicPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.paymentService.InitiatePublicPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// RecordManual stores an already settled row in the caller's ledger
// POST /api/v1/transactions
func (h *PaymentHandler) RecordManual(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	var req dto.ManualTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.paymentService.RecordManualTransaction(c.Request.Context(), who, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// Review approves or rejects a pending transaction
// POST /api/v1/admin/transactions/:id/review
func (h *PaymentHandler) Review(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req dto.ReviewTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(MsgInvalidInput))
		return
	}

	result, err := h.reconciliationService.ReviewTransaction(c.Request.Context(), who, id, req.Action)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// Access reports whether the caller may use premium features
// GET /api/v1/access
func (h *PaymentHandler) Access(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}

	decision, err := h.subscriptionService.CallerAccess(c.Request.Context(), who)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(dto.AccessResponse{
		Allowed:   decision.Allowed,
		Reason:    string(decision.Reason),
		ExpiresAt: decision.ExpiresAt,
	}))
}
