package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CCodeCommunity/CardGameBackend/internal/account/domain"
	accountservice "github.com/CCodeCommunity/CardGameBackend/internal/account/service"
	auditdomain "github.com/CCodeCommunity/CardGameBackend/internal/audit/domain"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/platform/httpjson"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AccountAPI is the part of the account service served over HTTP.
type AccountAPI interface {
	Register(ctx context.Context, req accountservice.RegisterRequest) (*domain.Account, error)
	Get(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context, page, pageSize int) (*domain.PagedResult, error)
	ChangeState(ctx context.Context, id string, target domain.State) error
}

// AuditReader lists audit entries. See audit/repository.Repository.
type AuditReader interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*auditdomain.AuditLog, error)
}

// Handler serves the account routes.
type Handler struct {
	accounts AccountAPI
	audit    AuditReader
	log      logging.Logger
}

// NewHandler returns a Handler. auditLogs may be nil; the audit-log route then answers 404.
func NewHandler(accounts AccountAPI, auditLogs AuditReader, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{accounts: accounts, audit: auditLogs, log: log}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID string `json:"id"`
}

type validationErrorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

type changeStateRequest struct {
	NewState string `json:"newState"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type pagedResponse struct {
	CurrentPage    int               `json:"currentPage"`
	PageCount      int               `json:"pageCount"`
	PageSize       int               `json:"pageSize"`
	RowCount       int               `json:"rowCount"`
	FirstRowOnPage int               `json:"firstRowOnPage"`
	LastRowOnPage  int               `json:"lastRowOnPage"`
	Results        []accountResponse `json:"results"`
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Register handles POST /api/accounts.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	a, err := h.accounts.Register(r.Context(), accountservice.RegisterRequest{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		var ve *domain.ValidationError
		switch {
		case errors.As(err, &ve):
			httpjson.Write(w, http.StatusBadRequest, validationErrorBody{
				Error:   http.StatusText(http.StatusBadRequest),
				Field:   ve.Field,
				Message: ve.Message,
			})
		case errors.Is(err, accountservice.ErrEmailAlreadyRegistered):
			httpjson.Error(w, http.StatusBadRequest)
		default:
			h.serverError(w, r, "register failed", err)
		}
		return
	}
	httpjson.Write(w, http.StatusOK, registerResponse{ID: a.ID})
}

// List handles GET /api/accounts?page=&pageSize=. Missing parameters take defaults.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	pageSize, err := intQuery(r, "pageSize", domain.DefaultPageSize)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	res, err := h.accounts.List(r.Context(), page, pageSize)
	if err != nil {
		h.serverError(w, r, "list accounts failed", err)
		return
	}
	out := pagedResponse{
		CurrentPage:    res.CurrentPage,
		PageCount:      res.PageCount,
		PageSize:       res.PageSize,
		RowCount:       res.RowCount,
		FirstRowOnPage: res.FirstRowOnPage,
		LastRowOnPage:  res.LastRowOnPage,
		Results:        make([]accountResponse, 0, len(res.Results)),
	}
	for _, a := range res.Results {
		out.Results = append(out.Results, toAccountResponse(a))
	}
	httpjson.Write(w, http.StatusOK, out)
}

// Get handles GET /api/accounts/{accountId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Get(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		if errors.Is(err, accountservice.ErrAccountNotFound) {
			httpjson.Error(w, http.StatusNotFound)
			return
		}
		h.serverError(w, r, "get account failed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, toAccountResponse(a))
}

// ChangeState handles PATCH /api/accounts/{accountId}/state.
func (h *Handler) ChangeState(w http.ResponseWriter, r *http.Request) {
	var req changeStateRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	target, err := domain.ParseState(req.NewState)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	err = h.accounts.ChangeState(r.Context(), chi.URLParam(r, "accountId"), target)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, accountservice.ErrAccountNotFound):
		httpjson.Error(w, http.StatusBadRequest)
	default:
		h.serverError(w, r, "change account state failed", err)
	}
}

// AuditLogs handles GET /api/accounts/{accountId}/audit-logs?limit=&offset=.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		httpjson.Error(w, http.StatusNotFound)
		return
	}
	limit, err := intQuery(r, "limit", defaultAuditLimit)
	if err != nil || limit < 1 {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil || offset < 0 {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	list, err := h.audit.ListByAccount(r.Context(), chi.URLParam(r, "accountId"), limit, offset)
	if err != nil {
		h.serverError(w, r, "list audit logs failed", err)
		return
	}
	out := make([]auditLogResponse, 0, len(list))
	for _, e := range list {
		out = append(out, auditLogResponse{
			ID:        e.ID,
			Action:    e.Action,
			Resource:  e.Resource,
			IP:        e.IP,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
		})
	}
	httpjson.Write(w, http.StatusOK, out)
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      string(a.Role),
		State:     string(a.State),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(r.Context(), msg, "error", err)
	httpjson.Error(w, http.StatusInternalServerError)
}
