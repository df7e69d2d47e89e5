package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	identityservice "github.com/CCodeCommunity/CardGameBackend/internal/identity/service"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/platform/httpjson"
	"github.com/CCodeCommunity/CardGameBackend/internal/server/middleware"
	sessiondomain "github.com/CCodeCommunity/CardGameBackend/internal/session/domain"
)

// AuthAPI is the part of the auth service served over HTTP.
type AuthAPI interface {
	Login(ctx context.Context, req identityservice.LoginRequest) (*identityservice.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*identityservice.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	ListSessions(ctx context.Context, accountID string) ([]*sessiondomain.Session, error)
}

// Handler serves login, token refresh, logout and the login-instance list.
type Handler struct {
	auth AuthAPI
	log  logging.Logger
}

// NewHandler returns a Handler backed by auth.
func NewHandler(auth AuthAPI, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{auth: auth, log: log}
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Device      string `json:"device"`
	DeviceAgent string `json:"deviceAgent"`
	DeviceOS    string `json:"deviceOS"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type loginInstanceResponse struct {
	ID            string     `json:"id"`
	Device        string     `json:"device"`
	DeviceAgent   string     `json:"deviceAgent"`
	DeviceOS      string     `json:"deviceOS"`
	IP            string     `json:"ip"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastGrantedAt time.Time  `json:"lastGrantedAt"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
}

// Login handles POST /api/accounts/login. Any failure other than storage is a bare 400.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	res, err := h.auth.Login(r.Context(), identityservice.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
		Device:   sessiondomain.DeviceInfo{Name: req.Device, Agent: req.DeviceAgent, OS: req.DeviceOS},
		IP:       middleware.ClientIPFromContext(r.Context()),
	})
	if err != nil {
		if errors.Is(err, identityservice.ErrInvalidCredentials) {
			httpjson.Error(w, http.StatusBadRequest)
			return
		}
		h.serverError(w, r, "login failed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, tokenPairResponse{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

// Refresh handles PATCH /api/accounts/access-token. Replay, closed sessions and revoked
// sessions all answer 400 so callers cannot tell them apart.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest)
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if isRefreshDenial(err) {
			httpjson.Error(w, http.StatusBadRequest)
			return
		}
		h.serverError(w, r, "refresh failed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, tokenPairResponse{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

func isRefreshDenial(err error) bool {
	for _, target := range []error{
		identityservice.ErrSessionNotFound,
		identityservice.ErrSessionClosed,
		identityservice.ErrRefreshTokenReuse,
		identityservice.ErrSessionRevoked,
		identityservice.ErrAccountNotActive,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Logout handles DELETE /api/accounts/login-instance.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusUnprocessableEntity)
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, identityservice.ErrSessionNotFound) {
			httpjson.Error(w, http.StatusUnprocessableEntity)
			return
		}
		h.serverError(w, r, "logout failed", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// LoginInstances handles GET /api/accounts/{accountId}/login-instances.
func (h *Handler) LoginInstances(w http.ResponseWriter, r *http.Request) {
	list, err := h.auth.ListSessions(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		h.serverError(w, r, "list login instances failed", err)
		return
	}
	out := make([]loginInstanceResponse, 0, len(list))
	for _, s := range list {
		out = append(out, loginInstanceResponse{
			ID:            s.ID,
			Device:        s.Device.Name,
			DeviceAgent:   s.Device.Agent,
			DeviceOS:      s.Device.OS,
			IP:            s.IPAddress,
			State:         string(s.State),
			CreatedAt:     s.CreatedAt,
			LastGrantedAt: s.LastGrantedAt,
			ClosedAt:      s.ClosedAt,
		})
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(r.Context(), msg, "error", err)
	httpjson.Error(w, http.StatusInternalServerError)
}
