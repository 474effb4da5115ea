// internal/api/handler/vault.go
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fdvault/internal/api/types"
	"fdvault/internal/domain"
	"fdvault/internal/ledger"
	"fdvault/internal/service"
	"fdvault/internal/util"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// VaultHandler handles HTTP requests for vault operations.
type VaultHandler struct {
	service service.VaultService
	logger  *zap.Logger
}

// NewVaultHandler creates a new VaultHandler.
func NewVaultHandler(svc service.VaultService, logger *zap.Logger) *VaultHandler {
	return &VaultHandler{
		service: svc,
		logger:  logger,
	}
}

// Helper function to send JSON responses.
func (h *VaultHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func (h *VaultHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput),
		util.IsError(err, util.ErrInvalidAmount),
		util.IsError(err, util.ErrInvalidRecipient):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Fixed deposit not found"
	case util.IsError(err, util.ErrInsufficientBalance):
		statusCode = http.StatusPaymentRequired
		message = "Insufficient balance"
	case util.IsError(err, util.ErrAlreadyWithdrawn):
		statusCode = http.StatusConflict
		message = "Fixed deposit already withdrawn"
	case util.IsError(err, util.ErrNotMatured):
		statusCode = http.StatusConflict
		message = "Fixed deposit has not matured"
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
	}

	h.respondWithJSON(w, statusCode, types.ErrorResponse{Error: message, Kind: util.ErrorKind(err)})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", util.ErrInvalidInput)
	}
	return nil
}

func parseIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("deposit index %q: %w", chi.URLParam(r, "index"), util.ErrInvalidInput)
	}
	return index, nil
}

func parseWei(field, s string) (decimal.Decimal, error) {
	amount, err := domain.ParseWei(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return amount, nil
}

// OpenAccount handles POST /accounts/{address}/open.
func (h *VaultHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	acct, created, err := h.service.OpenAccount(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	h.respondWithJSON(w, code, map[string]interface{}{
		"created": created,
		"account": types.NewAccountView(acct, h.service.Now()),
	})
}

// GetAccount handles GET /accounts/{address}.
func (h *VaultHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewAccountView(acct, h.service.Now()))
}

// FundRequest represents the request body for funding ETH.
type FundRequest struct {
	AmountWei string `json:"amount_wei"`
}

// FundEth handles POST /accounts/{address}/fund.
func (h *VaultHandler) FundEth(w http.ResponseWriter, r *http.Request) {
	var req FundRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	amount, err := parseWei("amount_wei", req.AmountWei)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	acct, err := h.service.FundEth(r.Context(), chi.URLParam(r, "address"), amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewAccountView(acct, h.service.Now()))
}

// ConvertRequest represents the request body for a conversion.
type ConvertRequest struct {
	Direction string `json:"direction"`
	AmountWei string `json:"amount_wei"`
}

// Convert handles POST /accounts/{address}/convert.
func (h *VaultHandler) Convert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	amount, err := parseWei("amount_wei", req.AmountWei)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	res, ref, err := h.service.Convert(r.Context(), chi.URLParam(r, "address"), ledger.Direction(req.Direction), amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Conversion successful",
		"ref":           ref,
		"direction":     res.Direction,
		"amount_in":     types.NewAmount(res.AmountIn),
		"amount_out":    types.NewAmount(res.AmountOut),
		"token_balance": types.NewAmount(res.TokenBalance),
		"eth_balance":   types.NewAmount(res.EthBalance),
	})
}

// TransferRequest represents the request body for transfer.
type TransferRequest struct {
	Recipient string `json:"recipient"`
	AmountWei string `json:"amount_wei"`
}

// Transfer handles POST /accounts/{address}/transfer.
func (h *VaultHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	amount, err := parseWei("amount_wei", req.AmountWei)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	res, ref, err := h.service.Transfer(r.Context(), chi.URLParam(r, "address"), req.Recipient, amount)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Transfer successful",
		"ref":          ref,
		"from":         res.From,
		"to":           res.To,
		"amount":       types.NewAmount(res.Amount),
		"from_balance": types.NewAmount(res.FromBalance),
		"to_balance":   types.NewAmount(res.ToBalance),
	})
}

// ListDeposits handles GET /accounts/{address}/deposits.
func (h *VaultHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	acct, err := h.service.GetAccount(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewAccountView(acct, h.service.Now()).Deposits)
}

// CreateDepositRequest represents the request body for a new fixed deposit.
type CreateDepositRequest struct {
	AmountWei string `json:"amount_wei"`
	Months    int    `json:"months"`
}

// CreateDeposit handles POST /accounts/{address}/deposits.
func (h *VaultHandler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req CreateDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	amount, err := parseWei("amount_wei", req.AmountWei)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	res, ref, err := h.service.CreateDeposit(r.Context(), chi.URLParam(r, "address"), amount, req.Months)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message":       "Fixed deposit created",
		"ref":           ref,
		"deposit":       types.NewDepositView(res.Index, res.Deposit, h.service.Now()),
		"token_balance": types.NewAmount(res.TokenBalance),
	})
}

func (h *VaultHandler) respondWithPayout(w http.ResponseWriter, message string, res *ledger.PayoutResult, ref string) {
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":       message,
		"ref":           ref,
		"deposit":       types.NewDepositView(res.Index, res.Deposit, h.service.Now()),
		"principal":     types.NewAmount(res.Principal),
		"interest":      types.NewAmount(res.Interest),
		"payout":        types.NewAmount(res.Payout),
		"token_balance": types.NewAmount(res.TokenBalance),
	})
}

// Withdraw handles POST /accounts/{address}/deposits/{index}/withdraw.
func (h *VaultHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	res, ref, err := h.service.Withdraw(r.Context(), chi.URLParam(r, "address"), index)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithPayout(w, "Withdrawal successful", res, ref)
}

// EarlyWithdraw handles POST /accounts/{address}/deposits/{index}/early-withdraw.
func (h *VaultHandler) EarlyWithdraw(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	res, ref, err := h.service.EarlyWithdraw(r.Context(), chi.URLParam(r, "address"), index)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithPayout(w, "Early withdrawal successful", res, ref)
}

// RenewRequest represents the request body for a renewal.
type RenewRequest struct {
	Months int `json:"months"`
}

// Renew handles POST /accounts/{address}/deposits/{index}/renew.
func (h *VaultHandler) Renew(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var req RenewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	res, ref, err := h.service.Renew(r.Context(), chi.URLParam(r, "address"), index, req.Months)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":            "Fixed deposit renewed",
		"ref":                ref,
		"deposit":            types.NewDepositView(res.Index, res.Deposit, h.service.Now()),
		"forfeited_interest": types.NewAmount(res.ForfeitedInterest),
	})
}

// GetTransactionHistory handles GET /accounts/{address}/transactions.
func (h *VaultHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	transactions, totalCount, err := h.service.GetTransactionHistory(r.Context(), chi.URLParam(r, "address"), limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	page := types.PaginatedResponse[types.TransactionView]{
		Data:       make([]types.TransactionView, 0, len(transactions)),
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	}
	for _, tx := range transactions {
		page.Data = append(page.Data, types.NewTransactionView(tx))
	}
	h.respondWithJSON(w, http.StatusOK, page)
}

// GetFixedDepositHistory handles GET /accounts/{address}/fixed-deposits/history.
func (h *VaultHandler) GetFixedDepositHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.GetFixedDepositHistory(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	views := make([]types.FixedDepositRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, types.NewFixedDepositRecordView(rec))
	}
	h.respondWithJSON(w, http.StatusOK, views)
}

// DistributeInterest handles POST /interest/distribute.
func (h *VaultHandler) DistributeInterest(w http.ResponseWriter, r *http.Request) {
	res, ref := h.service.DistributeMonthlyInterest(r.Context())

	credits := make([]map[string]interface{}, 0, len(res.Credits))
	for _, c := range res.Credits {
		credits = append(credits, map[string]interface{}{
			"owner":   c.Owner,
			"amount":  types.NewAmount(c.Amount),
			"balance": types.NewAmount(c.Balance),
		})
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Interest distributed",
		"ref":     ref,
		"rate":    res.Rate.String(),
		"total":   types.NewAmount(res.Total),
		"credits": credits,
	})
}

// GetStats handles GET /vault/stats.
func (h *VaultHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, types.NewStatsView(h.service.Stats(r.Context())))
}
