package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/clock"
	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const (
	minPasswordLen    = 8
	maxEmailLen       = 255
	maxDisplayNameLen = 120
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Clock  clock.Clock
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, clk clock.Clock) *AuthHandler {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Clock: clk}
}

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"` // user | organizer
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates a user or organizer account and returns a token pair.
// Admin accounts are provisioned out of band.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") || len(req.Email) > maxEmailLen {
		return badRequest(c, "valid email required")
	}
	if len(req.Password) < minPasswordLen {
		return badRequest(c, "password must be at least 8 characters")
	}
	role := model.RoleUser
	if r := strings.ToLower(strings.TrimSpace(req.Role)); r != "" {
		parsed, err := model.ParseRole(r)
		if err != nil || parsed == model.RoleAdmin {
			return badRequest(c, "role must be user or organizer")
		}
		role = parsed
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = req.Email[:strings.Index(req.Email, "@")]
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return badRequest(c, "display name too long")
	}

	ctx := c.Request().Context()
	uid, err := h.Users.Create(ctx, req.Email, req.Password, name, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			return c.JSON(http.StatusConflict, errorBody{Error: "email already exists", Code: "conflict"})
		}
		return respondError(c, err)
	}
	resp, err := h.issue(c, uid, req.Email, role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.  Blocked
// accounts are refused.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	u, err := h.Users.GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return respondError(c, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if u.Blocked {
		return c.JSON(http.StatusForbidden, errorBody{Error: "account blocked", Code: "forbidden"})
	}
	resp, err := h.issue(c, u.ID, u.Email, u.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates the refresh token, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	u, hash, ok, err := h.refreshOwner(c)
	if !ok {
		return err
	}
	_ = h.Tokens.RevokeByHash(c.Request().Context(), hash)
	resp, err := h.issue(c, u.ID, u.Email, u.Role)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	u, _, ok, err := h.refreshOwner(c)
	if !ok {
		return err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.accessTTL(), h.Clock.Now())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the bearer when only an access token is supplied.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)
	ctx := c.Request().Context()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash, h.Clock.Now()); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		claims, err := utils.ParseAccessTokenAt(h.Cfg.JWTSecret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")), h.Clock.Now())
		if err != nil {
			return unauthorized(c)
		}
		uid, _ := claims.UserID()
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return badRequest(c, "provide Authorization header or refresh_token")
}

// Me returns the caller's account.
func (h *AuthHandler) Me(c echo.Context) error {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	u, err := h.Users.GetByID(c.Request().Context(), a.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// refreshOwner binds and validates a refresh token and loads its user.
// When ok is false the response has been written and err is its result.
func (h *AuthHandler) refreshOwner(c echo.Context) (u *model.User, hash string, ok bool, err error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, "", false, badRequest(c, "refresh_token required")
	}
	hash = utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	ctx := c.Request().Context()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash, h.Clock.Now())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return nil, "", false, respondError(c, err)
	}
	u, err = h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return nil, "", false, respondError(c, err)
	}
	if u.Blocked {
		return nil, "", false, c.JSON(http.StatusForbidden, errorBody{Error: "account blocked", Code: "forbidden"})
	}
	return u, hash, true, nil
}

func (h *AuthHandler) issue(c echo.Context, uid uint64, email string, role model.Role) (*authResp, error) {
	now := h.Clock.Now()
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, role, h.accessTTL(), now)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays, now)
	if err != nil {
		return nil, err
	}
	if err := h.Tokens.StoreRefresh(c.Request().Context(), uid, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &authResp{
		User:    userPart{ID: uid, Email: email, Role: role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

func (h *AuthHandler) accessTTL() time.Duration {
	return time.Duration(h.Cfg.AccessTTLMin) * time.Minute
}
