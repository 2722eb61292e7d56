package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcalor/sabor-emilia/internal/auth"
	"github.com/mcalor/sabor-emilia/models"
)

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var credentials models.AdminCredentials
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		h.Logger.Error("error decoding admin credentials", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := h.Database.GetAdminByEmail(credentials.Email)
	if err != nil {
		if strings.Contains(err.Error(), "no rows in result set") {
			h.writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.Logger.Error("error fetching admin user", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	err = bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(credentials.Password))
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := auth.BuildJWT(admin.ID)
	if err != nil {
		h.Logger.Error("error building JWT", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Database.GetStats()
	if err != nil {
		h.Logger.Error("error loading stats", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) AdminRecentOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Database.GetRecentOrders(5)
	if err != nil {
		h.Logger.Error("error loading recent orders", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

// AdminUpdateOrderStatus is the administrative fulfillment path
// (PREPARING, DELIVERED and manual cancellations). It bypasses the
// reconciliation guard on purpose.
func (h *Handler) AdminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	updated, err := h.Database.SetOrderStatus(orderNumber, req.Status)
	if err != nil {
		h.Logger.Errorw("error updating order status", "orderNumber", orderNumber, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !updated {
		h.writeError(w, http.StatusNotFound, "pedido no encontrado")
		return
	}

	h.Logger.Infow("order status set by admin", "orderNumber", orderNumber, "status", req.Status)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}
