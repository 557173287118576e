package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/features/admins"
	"akeeper.ru/botpanel/internal/password"
)

// mockDirectory — каталог администраторов, считающий обращения.
type mockDirectory struct {
	admins map[string]*admins.AdminUser
	err    error
	calls  int
}

func (d *mockDirectory) GetByUsername(ctx context.Context, username string) (*admins.AdminUser, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.admins[username], nil
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	sm, err := NewSessionManager("test-secret", "test_session", 24*time.Hour, false)
	require.NoError(t, err)
	return NewProvider(sm)
}

func adminWithPassword(t *testing.T, username, plaintext string, blocked bool) *admins.AdminUser {
	t.Helper()
	hash, err := password.Hash(plaintext)
	require.NoError(t, err)
	return &admins.AdminUser{
		UserID:       1,
		Name:         "Test Admin",
		Username:     username,
		PasswordHash: hash,
		IsBlocked:    blocked,
	}
}

// requestWithCookies переносит cookie из ответа в новый запрос —
// имитация следующего запроса того же браузера.
func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

// TestLoginShortUsernameSkipsRepository: username короче 5 символов
// отклоняется валидацией ДО единственного обращения к каталогу.
func TestLoginShortUsernameSkipsRepository(t *testing.T) {
	p := newTestProvider(t)
	dir := &mockDirectory{}

	_, _, err := p.Login(context.Background(), dir, "usr", "password123!")

	require.Error(t, err)
	_, ok := common.AsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, 0, dir.calls)
}

// TestLoginShortPasswordSkipsRepository: пароль короче 8 символов — то же самое.
func TestLoginShortPasswordSkipsRepository(t *testing.T) {
	p := newTestProvider(t)
	dir := &mockDirectory{}

	_, _, err := p.Login(context.Background(), dir, "valid_user", "short")

	require.Error(t, err)
	_, ok := common.AsValidationError(err)
	assert.True(t, ok)
	assert.Equal(t, 0, dir.calls)
}

// TestLoginUnknownUsername: нет такого администратора → "Invalid username".
func TestLoginUnknownUsername(t *testing.T) {
	p := newTestProvider(t)
	dir := &mockDirectory{admins: map[string]*admins.AdminUser{}}

	_, _, err := p.Login(context.Background(), dir, "ghost_admin", "password123!")

	var lf *LoginFailedError
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, MsgInvalidUsername, lf.Message)
}

// TestLoginWrongPassword: пароль не подошёл → "Invalid password".
func TestLoginWrongPassword(t *testing.T) {
	p := newTestProvider(t)
	dir := &mockDirectory{admins: map[string]*admins.AdminUser{
		"real_admin": adminWithPassword(t, "real_admin", "correct-Pass-1!", false),
	}}

	_, _, err := p.Login(context.Background(), dir, "real_admin", "wrong-Pass-1!")

	var lf *LoginFailedError
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, MsgInvalidPassword, lf.Message)
}

// TestLoginBlockedAfterPasswordCheck: заблокированная учётка с ВЕРНЫМ
// паролем получает "blocked", с НЕВЕРНЫМ — "Invalid password".
// Блокировка не должна выдавать, был ли пароль верным.
func TestLoginBlockedAfterPasswordCheck(t *testing.T) {
	p := newTestProvider(t)
	dir := &mockDirectory{admins: map[string]*admins.AdminUser{
		"blocked_admin": adminWithPassword(t, "blocked_admin", "correct-Pass-1!", true),
	}}

	_, _, err := p.Login(context.Background(), dir, "blocked_admin", "correct-Pass-1!")
	var lf *LoginFailedError
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, MsgAccountBlocked, lf.Message)

	_, _, err = p.Login(context.Background(), dir, "blocked_admin", "wrong-Pass-1!")
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, MsgInvalidPassword, lf.Message)
}

// TestLoginLookupFailureIsGeneric: сбой каталога схлопывается в
// расплывчатое сообщение без внутренних деталей.
func TestLoginLookupFailureIsGeneric(t *testing.T) {
	p := newTestProvider(t)
	dir := &mockDirectory{err: errors.New("connection refused: 10.0.0.5:5432")}

	_, _, err := p.Login(context.Background(), dir, "valid_user", "password123!")

	var lf *LoginFailedError
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, MsgGenericFailure, lf.Message)
	assert.NotContains(t, lf.Message, "10.0.0.5")
}

// TestLoginThenAuthenticate: после успешного логина IssueSession ставит
// cookie, по которому следующий запрос аутентифицируется. Сам Login
// заголовков не трогает — cookie выпускается только явным IssueSession.
func TestLoginThenAuthenticate(t *testing.T) {
	p := newTestProvider(t)
	admin := adminWithPassword(t, "super_admin", "correct-Pass-1!", false)
	dir := &mockDirectory{admins: map[string]*admins.AdminUser{"super_admin": admin}}

	loggedIn, newSession, err := p.Login(context.Background(), dir, "super_admin", "correct-Pass-1!")
	require.NoError(t, err)
	require.NotNil(t, loggedIn)
	require.NotNil(t, newSession)

	rec := httptest.NewRecorder()
	require.NoError(t, p.IssueSession(rec, newSession))

	resolved, session := p.Authenticate(context.Background(), dir, requestWithCookies(rec))
	require.NotNil(t, resolved)
	require.NotNil(t, session)
	assert.Equal(t, admin.UserID, resolved.UserID)
	assert.Equal(t, "super_admin", session.Username)
}

// TestAuthenticateBlockedMidSession: блокировка после логина действует
// на следующем же запросе, хотя cookie не менялся.
func TestAuthenticateBlockedMidSession(t *testing.T) {
	p := newTestProvider(t)
	admin := adminWithPassword(t, "victim_admin", "correct-Pass-1!", false)
	dir := &mockDirectory{admins: map[string]*admins.AdminUser{"victim_admin": admin}}

	_, session, err := p.Login(context.Background(), dir, "victim_admin", "correct-Pass-1!")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, p.IssueSession(rec, session))

	resolved, _ := p.Authenticate(context.Background(), dir, requestWithCookies(rec))
	require.NotNil(t, resolved)

	// Супер-админ заблокировал учётку между запросами
	admin.IsBlocked = true

	resolved, _ = p.Authenticate(context.Background(), dir, requestWithCookies(rec))
	assert.Nil(t, resolved)
}

// TestAuthenticateFailsClosed: сбой перечитывания — не аутентифицирован.
func TestAuthenticateFailsClosed(t *testing.T) {
	p := newTestProvider(t)
	admin := adminWithPassword(t, "stable_admin", "correct-Pass-1!", false)
	dir := &mockDirectory{admins: map[string]*admins.AdminUser{"stable_admin": admin}}

	_, session, err := p.Login(context.Background(), dir, "stable_admin", "correct-Pass-1!")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, p.IssueSession(rec, session))

	brokenDir := &mockDirectory{err: errors.New("база недоступна")}
	resolved, _ := p.Authenticate(context.Background(), brokenDir, requestWithCookies(rec))
	assert.Nil(t, resolved)
}

// TestAuthenticateNoCookie: без cookie — аноним.
func TestAuthenticateNoCookie(t *testing.T) {
	p := newTestProvider(t)
	dir := &mockDirectory{}

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	resolved, session := p.Authenticate(context.Background(), dir, req)
	assert.Nil(t, resolved)
	assert.Nil(t, session)
	assert.Equal(t, 0, dir.calls)
}

// TestFlashShownExactlyOnce: flash-данные (сырой пароль) читаются один раз.
func TestFlashShownExactlyOnce(t *testing.T) {
	p := newTestProvider(t)
	session := &SessionData{Username: "super_admin", UserID: 1}

	p.SetFlash(session, &Flash{
		Message: "Сырой пароль созданного администратора new_admin: ",
		Data:    "Gen3rated!Pwd",
	})

	// Первый показ
	flash := p.PopFlash(session)
	require.NotNil(t, flash)
	assert.Equal(t, "Gen3rated!Pwd", flash.Data)

	// Повторный показ невозможен
	assert.Nil(t, p.PopFlash(session))

	// И в перевыпущенном cookie flash-а больше нет
	rec := httptest.NewRecorder()
	require.NoError(t, p.IssueSession(rec, session))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	data, err := p.sessions.Decrypt(cookies[len(cookies)-1].Value)
	require.NoError(t, err)
	assert.Nil(t, data.Flash)
}

// TestLogoutClearsCookie: logout стирает cookie сессии.
func TestLogoutClearsCookie(t *testing.T) {
	p := newTestProvider(t)
	rec := httptest.NewRecorder()

	p.Logout(rec, &SessionData{Username: "super_admin", UserID: 1})

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
