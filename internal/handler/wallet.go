package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/service"
	"github.com/go-chi/chi/v5"
)

// ListTransactions lists the caller's transactions. Admins see everyone's,
// or one user's with ?userId=.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	p := caller(r)
	userID := p.ID
	if p.IsAdmin() {
		userID = r.URL.Query().Get("userId")
	}

	txns, err := h.svc.Wallet.List(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, txns)
}

// GetTransaction returns one transaction
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.Wallet.Get(r.Context(), chi.URLParam(r, "transactionID"), caller(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, txn)
}

// CreateTransaction files a deposit or withdrawal named by the body's type
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	h.walletRequest(w, r, "")
}

// RequestDeposit files a manual UPI deposit
func (h *Handler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	h.walletRequest(w, r, domain.TxDeposit)
}

// RequestWithdrawal files a withdrawal
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.walletRequest(w, r, domain.TxWithdrawal)
}

func (h *Handler) walletRequest(w http.ResponseWriter, r *http.Request, typ domain.TransactionType) {
	var req domain.WalletRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if typ != "" {
		req.Type = typ
	}

	txn, err := h.svc.Wallet.Request(r.Context(), caller(r).ID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeCreated(w, txn)
}

// ApproveTransaction approves a pending transaction
func (h *Handler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.Wallet.Approve(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, txn)
}

// RejectTransaction rejects a pending transaction
func (h *Handler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.Wallet.Reject(r.Context(), chi.URLParam(r, "transactionID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, txn)
}

// CreatePaymentOrder starts a gateway deposit for the caller
func (h *Handler) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	order, err := h.svc.Payments.CreateOrder(r.Context(), caller(r).ID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, order)
}

// PaymentStatus returns the gateway's view of a payment
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Payments.Status(r.Context(), chi.URLParam(r, "transactionID"), caller(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, status)
}

// callbackBody covers the shapes a payment callback arrives in: the
// redirect form post, a plain JSON body, or the gateway's base64 envelope.
type callbackBody struct {
	TransactionID         string `json:"transactionId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	Response              string `json:"response"`
}

type callbackEnvelope struct {
	Data struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
	} `json:"data"`
}

// callbackTransactionID extracts the merchant transaction id from a callback.
func callbackTransactionID(r *http.Request) (string, error) {
	var body callbackBody
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return "", domain.InvalidInput("invalid form body")
		}
		body.TransactionID = r.PostForm.Get("transactionId")
		body.MerchantTransactionID = r.PostForm.Get("merchantTransactionId")
		body.Response = r.PostForm.Get("response")
	} else if err := decodeJSON(r, &body); err != nil {
		return "", err
	}

	if body.MerchantTransactionID != "" {
		return body.MerchantTransactionID, nil
	}
	if body.Response != "" {
		raw, err := base64.StdEncoding.DecodeString(body.Response)
		if err == nil {
			var env callbackEnvelope
			if json.Unmarshal(raw, &env) == nil && env.Data.MerchantTransactionID != "" {
				return env.Data.MerchantTransactionID, nil
			}
		}
	}
	if body.TransactionID != "" {
		return body.TransactionID, nil
	}
	return "", domain.InvalidInput("transaction id is required")
}

// PaymentCallback settles a deposit after the gateway reports back. The
// state is always re-verified with the gateway, so the body is untrusted.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	txnID, err := callbackTransactionID(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.svc.Payments.Callback(r.Context(), txnID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeSuccess(w, result)
}
