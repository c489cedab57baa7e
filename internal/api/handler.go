package rewards

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	service "github.com/glkeru/loyalty/rewards/internal/services"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type RewardsHandler struct {
	router  *mux.Router
	service *service.RewardsService
	logger  *zap.Logger
}

type ActionRequest struct {
	ActionType string         `json:"actionType"`
	Metadata   map[string]any `json:"metadata"`
	EventID    string         `json:"eventId"`
	OccurredAt time.Time      `json:"occurredAt"`
}

type RedeemRequest struct {
	Amount     int64  `json:"amount"`
	ExternalID string `json:"externalId"`
}

type RefundRequest struct {
	RedeemID   uuid.UUID `json:"redeemId"`
	ExternalID string    `json:"externalId"`
}

type CheckoutRequest struct {
	OrderID string `json:"orderId"`
	models.PriceRequest
}

type ProductsRequest struct {
	ProductIDs []string `json:"productIds"`
	Limit      int      `json:"limit"`
}

type TnxResponse struct {
	Transaction models.XPTransaction `json:"transaction"`
	Account     models.XPAccount     `json:"account"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Promo string `json:"promoCode,omitempty"`
}

func NewHandler(serv *service.RewardsService, logger *zap.Logger) *RewardsHandler {
	router := mux.NewRouter()
	handler := &RewardsHandler{router, serv, logger}
	router.Use(MiddlewareLog(logger))
	router.HandleFunc("/accounts/{id}/profile", handler.ProfileHandler).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}/transactions", handler.TransactionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}/streak", handler.StreakRiskHandler).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}/actions", handler.ActionHandler).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{id}/redeem", handler.RedeemHandler).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{id}/refund", handler.RefundHandler).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{id}/freeze", handler.FreezeHandler).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{id}/checkout", handler.CheckoutHandler).Methods(http.MethodPost)
	router.HandleFunc("/cart/price", handler.PriceHandler).Methods(http.MethodPost)
	router.HandleFunc("/bundles/suggestions", handler.SuggestionsHandler).Methods(http.MethodPost)
	router.HandleFunc("/bundles/progress", handler.ProgressHandler).Methods(http.MethodPost)
	router.HandleFunc("/discounts", handler.DiscountsHandler).Methods(http.MethodGet)

	return handler
}

func (r *RewardsHandler) ServeHTTP(w http.ResponseWriter, res *http.Request) {
	r.router.ServeHTTP(w, res)
}

func (r *RewardsHandler) Log(msg string, service string, err error) {
	r.logger.Error(msg,
		zap.String("service", service),
		zap.Error(err),
	)
}

// Профиль
func (r *RewardsHandler) ProfileHandler(w http.ResponseWriter, req *http.Request) {
	profile, err := r.service.Profile(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		r.writeError(w, "ProfileHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, profile)
}

// Транзакции за период: ?from=2026-01-01&to=2026-01-31
func (r *RewardsHandler) TransactionsHandler(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	from, err := time.Parse(time.DateOnly, q.Get("from"))
	if err != nil {
		http.Error(w, "from is not a date", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.DateOnly, q.Get("to"))
	if err != nil {
		http.Error(w, "to is not a date", http.StatusBadRequest)
		return
	}
	tnxs, err := r.service.Transactions(req.Context(), mux.Vars(req)["id"], from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		r.writeError(w, "TransactionsHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, tnxs)
}

// Состояние стрика
func (r *RewardsHandler) StreakRiskHandler(w http.ResponseWriter, req *http.Request) {
	risk, err := r.service.CheckAtRisk(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		r.writeError(w, "StreakRiskHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, risk)
}

// Действие пользователя
func (r *RewardsHandler) ActionHandler(w http.ResponseWriter, req *http.Request) {
	action := ActionRequest{}
	if !r.readJSON(w, req, &action, "ActionHandler") {
		return
	}
	result, err := r.service.RecordAction(req.Context(), mux.Vars(req)["id"], action.ActionType, action.Metadata, action.EventID, action.OccurredAt)
	if err != nil {
		r.writeError(w, "ActionHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, result)
}

// Списание XP
func (r *RewardsHandler) RedeemHandler(w http.ResponseWriter, req *http.Request) {
	redeem := RedeemRequest{}
	if !r.readJSON(w, req, &redeem, "RedeemHandler") {
		return
	}
	tnx, account, err := r.service.RedeemXP(req.Context(), mux.Vars(req)["id"], redeem.Amount, redeem.ExternalID)
	if err != nil {
		r.writeError(w, "RedeemHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, TnxResponse{tnx, account})
}

// Возврат списания
func (r *RewardsHandler) RefundHandler(w http.ResponseWriter, req *http.Request) {
	refund := RefundRequest{}
	if !r.readJSON(w, req, &refund, "RefundHandler") {
		return
	}
	tnx, account, err := r.service.Refund(req.Context(), mux.Vars(req)["id"], refund.RedeemID, refund.ExternalID)
	if err != nil {
		r.writeError(w, "RefundHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, TnxResponse{tnx, account})
}

// Заморозка стрика
func (r *RewardsHandler) FreezeHandler(w http.ResponseWriter, req *http.Request) {
	streak, err := r.service.UseFreezeToken(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		r.writeError(w, "FreezeHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, streak)
}

// Оформление заказа
func (r *RewardsHandler) CheckoutHandler(w http.ResponseWriter, req *http.Request) {
	checkout := CheckoutRequest{}
	if !r.readJSON(w, req, &checkout, "CheckoutHandler") {
		return
	}
	result, err := r.service.Checkout(req.Context(), mux.Vars(req)["id"], checkout.OrderID, checkout.PriceRequest)
	if err != nil {
		r.writeError(w, "CheckoutHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, result)
}

// Расчет корзины
func (r *RewardsHandler) PriceHandler(w http.ResponseWriter, req *http.Request) {
	price := models.PriceRequest{}
	if !r.readJSON(w, req, &price, "PriceHandler") {
		return
	}
	result, err := r.service.PriceCart(req.Context(), price)
	if err != nil {
		r.writeError(w, "PriceHandler", err)
		return
	}
	r.writeJSON(w, http.StatusOK, result)
}

// Подсказки наборов
func (r *RewardsHandler) SuggestionsHandler(w http.ResponseWriter, req *http.Request) {
	products := ProductsRequest{}
	if !r.readJSON(w, req, &products, "SuggestionsHandler") {
		return
	}
	r.writeJSON(w, http.StatusOK, r.service.BundleSuggestions(products.ProductIDs, products.Limit))
}

// Прогресс по наборам
func (r *RewardsHandler) ProgressHandler(w http.ResponseWriter, req *http.Request) {
	products := ProductsRequest{}
	if !r.readJSON(w, req, &products, "ProgressHandler") {
		return
	}
	r.writeJSON(w, http.StatusOK, r.service.BundleProgress(products.ProductIDs))
}

// Таблица скидок за XP
func (r *RewardsHandler) DiscountsHandler(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, r.service.DiscountTiers())
}

func (r *RewardsHandler) readJSON(w http.ResponseWriter, req *http.Request, v any, service string) bool {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.Log("Get request body", service, err)
		http.Error(w, "Body is empty", http.StatusBadRequest)
		return false
	}
	defer req.Body.Close()
	if err = json.Unmarshal(body, v); err != nil {
		r.Log("Unmarshal", service, err)
		http.Error(w, "Body is not correct", http.StatusBadRequest)
		return false
	}
	return true
}

func (r *RewardsHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	j, err := json.Marshal(v)
	if err != nil {
		r.Log("Marshal", "writeJSON", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	w.Write(j)
}

// ошибки сервиса в HTTP статусы
func (r *RewardsHandler) writeError(w http.ResponseWriter, service string, err error) {
	var perr *models.PromoError
	switch {
	case errors.As(err, &perr):
		r.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{err.Error(), string(perr.Code), perr.Promo})
	case errors.Is(err, models.ErrAccountNotFound), errors.Is(err, models.ErrNotFound):
		r.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrInsufficientXP),
		errors.Is(err, models.ErrNoFreezeTokensAvailable),
		errors.Is(err, models.ErrNoActiveStreak),
		errors.Is(err, models.ErrAlreadyRefunded),
		errors.Is(err, models.ErrNotRedemption):
		r.writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidAccount),
		errors.Is(err, models.ErrInvalidCart),
		errors.Is(err, models.ErrNotDiscountTier):
		r.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		r.Log("Service", service, err)
		r.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
