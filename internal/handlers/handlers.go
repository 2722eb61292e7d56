package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcalor/sabor-emilia/config"
	"github.com/mcalor/sabor-emilia/internal/db"
	"github.com/mcalor/sabor-emilia/internal/lifecycle"
	"github.com/mcalor/sabor-emilia/internal/mercadopago"
	"github.com/mcalor/sabor-emilia/models"
)

type Handler struct {
	Lifecycle *lifecycle.Manager
	Database  *db.Manager
	Config    *config.Config
	Logger    *zap.SugaredLogger
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("error encoding response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// Checkout creates the order and hands back the payment redirect. The
// order survives a gateway failure: the response then carries
// paymentPending and the client retries via the payment endpoint.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("error decoding checkout request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.Lifecycle.CreateOrder(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrValidation):
			h.Logger.Infow("checkout rejected", "error", err)
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, lifecycle.ErrConflict):
			h.Logger.Errorw("order number retries exhausted", "error", err)
			h.writeError(w, http.StatusConflict, "no pudimos procesar tu pedido, intenta nuevamente")
		default:
			h.Logger.Errorw("checkout failed", "error", err)
			h.writeError(w, http.StatusInternalServerError, "no pudimos procesar tu pedido")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, resp)
}

// Webhook receives MercadoPago payment notifications. Signature failures
// are rejected without touching any state; a 200 on applied or duplicate
// deliveries stops the gateway's redelivery, a 5xx triggers it.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	var payload models.WebhookPayload
	if err = json.Unmarshal(body, &payload); err != nil {
		h.Logger.Error("error decoding webhook payload", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if payload.Action != models.WebhookActionPaymentCreated && payload.Action != models.WebhookActionPaymentUpdated {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if payload.Data.ID == "" {
		h.writeError(w, http.StatusBadRequest, "no payment id provided")
		return
	}

	err = mercadopago.VerifySignature(
		r.Header.Get("x-signature"),
		r.Header.Get("x-request-id"),
		payload.Data.ID,
		h.Config.MercadoPagoSecret,
	)
	if err != nil {
		// security event, answer says nothing about local state
		h.Logger.Warnw("webhook signature verification failed",
			"paymentId", payload.Data.ID, "remote", r.RemoteAddr, "error", err)
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	outcome, err := h.Lifecycle.Reconcile(r.Context(), payload.Data.ID, payload.Action, body)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrOrderNotFound):
			h.Logger.Errorw("webhook references unknown order", "paymentId", payload.Data.ID, "error", err)
			h.writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, mercadopago.ErrGateway):
			h.Logger.Errorw("gateway rejected payment lookup", "paymentId", payload.Data.ID, "error", err)
			h.writeError(w, http.StatusBadGateway, "gateway error")
		default:
			h.Logger.Errorw("webhook processing failed", "paymentId", payload.Data.ID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	order, err := h.Database.GetOrderByNumber(orderNumber)
	if err != nil {
		h.Logger.Errorw("error fetching order", "orderNumber", orderNumber, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if order == nil {
		h.writeError(w, http.StatusNotFound, "pedido no encontrado")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

// RetryPayment re-runs the payment-intent step for an order created while
// the gateway was unavailable.
func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	resp, err := h.Lifecycle.RetryPayment(r.Context(), orderNumber)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "pedido no encontrado")
		case errors.Is(err, mercadopago.ErrTransient), errors.Is(err, mercadopago.ErrGateway):
			h.Logger.Errorw("payment retry failed", "orderNumber", orderNumber, "error", err)
			h.writeError(w, http.StatusBadGateway, "pago no disponible, intenta más tarde")
		default:
			h.Logger.Errorw("payment retry failed", "orderNumber", orderNumber, "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.Database.ListProducts()
	if err != nil {
		h.Logger.Error("error listing products", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) Contact(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("error decoding contact request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Message) == "" {
		h.writeError(w, http.StatusBadRequest, "faltan campos requeridos")
		return
	}
	if !lifecycle.ValidEmail(req.Email) {
		h.writeError(w, http.StatusBadRequest, "email inválido")
		return
	}

	contact := &models.Contact{
		ID:      uuid.New().String(),
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Message: strings.TrimSpace(req.Message),
		Status:  "NEW",
	}

	if err := h.Database.CreateContact(contact); err != nil {
		h.Logger.Error("error saving contact", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "id": contact.ID})
}
