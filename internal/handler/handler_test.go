package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/notify"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const secret = "handler-secret"

func bearerFor(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, time.Hour, time.Now())
	require.NoError(t, err)
	return tok.Token
}

func do(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
		retry  bool
	}{
		{fmt.Errorf("%w: title required", model.ErrValidation), http.StatusBadRequest, "validation", false},
		{model.ErrForbidden, http.StatusForbidden, "forbidden", false},
		{fmt.Errorf("%w: event 9", model.ErrNotFound), http.StatusNotFound, "not_found", false},
		{model.ErrInvalidTransition, http.StatusConflict, "invalid_transition", false},
		{model.ErrConflict, http.StatusConflict, "conflict", true},
		{model.ErrSoldOut, http.StatusConflict, "sold_out", false},
		{model.ErrAlreadyUsed, http.StatusConflict, "already_used", false},
		{model.ErrCancelled, http.StatusGone, "cancelled", false},
		{fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "timeout", true},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal", false},
	}
	for _, tt := range tests {
		status, code, retry := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.retry, retry, tt.err.Error())
	}
}

func TestRespondErrorHidesInternalText(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return respondError(c, fmt.Errorf("dial tcp 10.0.0.3:3306: refused")) })
	rec := do(e, http.MethodGet, "/x", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")

	e.GET("/y", func(c echo.Context) error { return respondError(c, model.ErrConflict) })
	rec = do(e, http.MethodGet, "/y", "", "")
	assert.JSONEq(t, `{"error":"conflict","code":"conflict","retryable":true}`, rec.Body.String())
}

func TestVenues(t *testing.T) {
	e := echo.New()
	e.GET("/v1/venues", ListVenues)
	e.GET("/v1/venues/:id", GetVenue)

	rec := do(e, http.MethodGet, "/v1/venues", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Venues []model.Venue `json:"venues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Venues, len(model.Venues()))

	rec = do(e, http.MethodGet, "/v1/venues/blue-frog", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"capacity":400`)

	rec = do(e, http.MethodGet, "/v1/venues/atlantis", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"not_found"`)
}

func TestRequestShapeValidation(t *testing.T) {
	e := echo.New()
	auth := middleware.JWTAuth(secret)
	b := NewBookingHandler(nil, nil)
	ev := NewEventHandler(nil)
	e.POST("/v1/bookings", b.Create, auth)
	e.POST("/v1/bookings/verify", b.Verify, auth)
	e.GET("/v1/bookings/:id", b.Get, auth)
	e.PUT("/v1/events/:id/status", ev.SetStatus, auth)

	user := bearerFor(t, 3, model.RoleUser)
	org := bearerFor(t, 2, model.RoleOrganizer)

	rec := do(e, http.MethodPost, "/v1/bookings", `{"event_id":`, user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(e, http.MethodPost, "/v1/bookings", `{"seat_class":"VIP","quantity":1}`, user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(e, http.MethodPost, "/v1/bookings/verify", `{"ticketId":"  "}`, org)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(e, http.MethodGet, "/v1/bookings/abc", "", user)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(e, http.MethodPut, "/v1/events/4/status", `{"status":"archived"}`, org)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"validation"`)
}

var userCols = []string{"id", "email", "password_hash", "display_name", "role", "kyc_status", "kyc_document", "is_blocked", "wallet_balance", "created_at", "updated_at"}

func authFixture(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	a := NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), pinnedClock(authNow))

	e := echo.New()
	e.POST("/v1/auth/register", a.Register)
	e.POST("/v1/auth/login", a.Login)
	e.POST("/v1/auth/logout", a.Logout)
	return e, mock
}

// authNow is the auth fixture's clock; tokens it issues are judged against
// it rather than the wall clock.
var authNow = time.Now().UTC().Truncate(time.Second)

type pinnedClock time.Time

func (c pinnedClock) Now() time.Time { return time.Time(c) }

func TestRegister(t *testing.T) {
	e, mock := authFixture(t)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("ann@example.com", sqlmock.AnyArg(), "Ann", "organizer").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(5, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := do(e, http.MethodPost, "/v1/auth/register",
		`{"email":" Ann@Example.com ","password":"longenough","display_name":"Ann","role":"organizer"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(5), resp.User.ID)
	assert.Equal(t, model.RoleOrganizer, resp.User.Role)
	claims, err := utils.ParseAccessTokenAt(secret, resp.Access.Token, authNow)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOrganizer, claims.Role)
	assert.Equal(t, authNow.Add(15*time.Minute), claims.ExpiresAt.Time.UTC())
	assert.Len(t, resp.Refresh.Token, 96)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterRejects(t *testing.T) {
	e, mock := authFixture(t)
	for _, body := range []string{
		`{"email":"x","password":"longenough"}`,
		`{"email":"a@b.c","password":"short"}`,
		`{"email":"a@b.c","password":"longenough","role":"admin"}`,
		`{"email":"a@b.c","password":"longenough","display_name":"` + strings.Repeat("n", 121) + `"}`,
		`{"email":"` + strings.Repeat("a", 250) + `@b.com","password":"longenough"}`,
	} {
		rec := do(e, http.MethodPost, "/v1/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	e, mock := authFixture(t)
	hash, err := utils.HashPassword("longenough", 4)
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	row := func(blocked bool) *sqlmock.Rows {
		return sqlmock.NewRows(userCols).AddRow(3, "bob@example.com", hash, "Bob", "user", "not_submitted", "", blocked, "0.00", now, now)
	}

	mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("bob@example.com").WillReturnRows(row(false))
	rec := do(e, http.MethodPost, "/v1/auth/login", `{"email":"bob@example.com","password":"wrong-pass"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("bob@example.com").WillReturnRows(row(true))
	rec = do(e, http.MethodPost, "/v1/auth/login", `{"email":"bob@example.com","password":"longenough"}`, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("bob@example.com").WillReturnRows(row(false))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).WillReturnResult(sqlmock.NewResult(1, 1))
	rec = do(e, http.MethodPost, "/v1/auth/login", `{"email":"bob@example.com","password":"longenough"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	mock.ExpectQuery(`FROM users WHERE email=\?`).WithArgs("nobody@example.com").WillReturnRows(sqlmock.NewRows(userCols))
	rec = do(e, http.MethodPost, "/v1/auth/login", `{"email":"nobody@example.com","password":"longenough"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogoutAllSessions(t *testing.T) {
	e, mock := authFixture(t)
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP\(\) WHERE user_id=\?`).
		WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 2))

	rec := do(e, http.MethodPost, "/v1/auth/logout", `{}`, bearerFor(t, 3, model.RoleUser))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodPost, "/v1/auth/logout", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func dialRoom(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/organizer/ws?access_token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestOrganizerRoom(t *testing.T) {
	hub := notify.NewHub()
	rooms := NewRoomHandler(hub, nil)
	e := echo.New()
	e.GET("/v1/organizer/ws", rooms.Serve,
		middleware.JWTAuth(secret), middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := dialRoom(t, srv, bearerFor(t, 2, model.RoleOrganizer))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(roomRequest{Action: actionJoinRoom, OrganizerID: 4}))
	m := readMsg(t, conn)
	assert.Equal(t, "error", m["event"])
	assert.Equal(t, "forbidden", m["error"])

	require.NoError(t, conn.WriteJSON(roomRequest{Action: actionJoinRoom, OrganizerID: 2}))
	m = readMsg(t, conn)
	assert.Equal(t, "joined", m["event"])

	// Another organizer's notification is not relayed.
	require.NoError(t, hub.Deliver(context.Background(), notify.New(notify.KindNewBooking, 4, "not yours", time.Now())))
	n := notify.New(notify.KindNewBooking, 2, "2 tickets sold", time.Now())
	n.EventID = 11
	require.NoError(t, hub.Deliver(context.Background(), n))

	m = readMsg(t, conn)
	assert.Equal(t, "newBooking", m["event"])
	data, ok := m["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2 tickets sold", data["message"])
	assert.Equal(t, float64(11), data["event_id"])
}

func TestOrganizerRoomRejectsBuyers(t *testing.T) {
	rooms := NewRoomHandler(notify.NewHub(), nil)
	e := echo.New()
	e.GET("/v1/organizer/ws", rooms.Serve,
		middleware.JWTAuth(secret), middleware.RequireRole(model.RoleOrganizer, model.RoleAdmin))
	srv := httptest.NewServer(e)
	defer srv.Close()

	_, resp, err := dialRoom(t, srv, bearerFor(t, 3, model.RoleUser))
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCanJoin(t *testing.T) {
	assert.True(t, canJoin(model.Actor{ID: 2, Role: model.RoleOrganizer}, 2))
	assert.False(t, canJoin(model.Actor{ID: 2, Role: model.RoleOrganizer}, 3))
	assert.True(t, canJoin(model.Actor{ID: 1, Role: model.RoleAdmin}, 3))
	assert.False(t, canJoin(model.Actor{ID: 1, Role: model.RoleAdmin}, 0))
}
