package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/iurnickita/abetos/internal/auth"
	"github.com/iurnickita/abetos/internal/handler/render"
	"github.com/iurnickita/abetos/internal/model"
	"github.com/iurnickita/abetos/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// fail пишет ответ об ошибке. Текст внутренних ошибок клиенту не отдается.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorJSONResponse{OK: false, Error: service.Reason(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		h.zaplog.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Message = "internal error"
	}
	var insufficient *service.InsufficientPointsError
	if errors.As(err, &insufficient) {
		resp.Balance = &insufficient.Balance
		resp.Required = &insufficient.Required
	}
	render.JSON(w, status, resp)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(service.ErrInvalidInput, err)
	}
	return nil
}

// customer - клиент, связанный с учетной записью запроса.
func (h *handler) customer(r *http.Request) (model.Customer, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return model.Customer{}, service.ErrNotFound
	}
	return h.service.CustomerByUser(r.Context(), id.UserID)
}

func (h *handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	customer, err := h.customer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	profile, err := h.service.Profile(r.Context(), customer.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, profileJSON(profile))
}

func (h *handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	customer, err := h.customer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), customer.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, BalanceJSONResponse{
		Current:  summary.Current,
		Earned:   summary.Earned,
		Redeemed: summary.Redeemed,
	})
}

func (h *handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			render.Error(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	customer, err := h.customer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	history, err := h.service.History(r.Context(), customer.ID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	transactions := make([]TransactionJSON, 0, len(history))
	for _, tx := range history {
		transactions = append(transactions, transactionJSON(tx))
	}
	render.JSON(w, http.StatusOK, map[string]any{"ok": true, "transactions": transactions})
}

func (h *handler) PostRedeem(w http.ResponseWriter, r *http.Request) {
	rewardID, err := strconv.ParseInt(chi.URLParam(r, "rewardID"), 10, 64)
	if err != nil || rewardID <= 0 {
		render.Error(w, http.StatusBadRequest, "invalid_input", "reward id must be a positive integer")
		return
	}
	id, _ := auth.FromContext(r.Context())

	receipt, err := h.service.Redeem(r.Context(), service.RedeemRequest{UserID: id.UserID, RewardID: rewardID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeReceipt(w, http.StatusOK, receipt)
}

func (h *handler) PostPurchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseJSONRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, _ := auth.FromContext(r.Context())

	// ручное количество баллов доступно только администратору
	if req.Points != nil && id.Role != model.RoleAdmin {
		render.Error(w, http.StatusForbidden, "forbidden", "points override requires admin role")
		return
	}

	receipt, err := h.service.Accrue(r.Context(), service.AccrualRequest{
		CustomerID:    req.CustomerID,
		UserID:        req.UserID,
		ProductCode:   req.ProductCode,
		Liters:        req.Liters,
		Amount:        req.Amount,
		Points:        req.Points,
		PaymentMethod: req.PaymentMethod,
		TicketNumber:  req.TicketNumber,
		PaidWithApp:   req.PaidWithApp,
		Note:          req.Note,
		OperatorID:    &id.UserID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeReceipt(w, http.StatusCreated, receipt)
}

func (h *handler) PostAccreditByDocument(w http.ResponseWriter, r *http.Request) {
	var req AccreditJSONRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id, _ := auth.FromContext(r.Context())

	receipt, err := h.service.AccrueByDocument(r.Context(), service.ManualAccrualRequest{
		DocNumber:     req.DocNumber,
		ProductCode:   req.ProductCode,
		Liters:        req.Liters,
		Amount:        req.Amount,
		UnitPrice:     req.UnitPrice,
		PaymentMethod: req.PaymentMethod,
		TicketNumber:  req.TicketNumber,
		PaidWithApp:   req.PaidWithApp,
		Note:          req.Note,
		OperatorID:    &id.UserID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeReceipt(w, http.StatusCreated, receipt)
}

func (h *handler) GetCustomerByDocument(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.ProfileByDocument(r.Context(), chi.URLParam(r, "doc"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, profileJSON(profile))
}

func writeReceipt(w http.ResponseWriter, status int, receipt model.Receipt) {
	render.JSON(w, status, ReceiptJSONResponse{
		OK:          true,
		NewBalance:  receipt.Balance,
		Transaction: transactionJSON(receipt.Transaction),
	})
}
