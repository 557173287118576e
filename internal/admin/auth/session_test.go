package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T, secret string) *SessionManager {
	t.Helper()
	sm, err := NewSessionManager(secret, "test_session", time.Hour, false)
	require.NoError(t, err)
	return sm
}

// TestEncryptDecryptRoundTrip: сессия переживает шифрование и расшифровку.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t, "secret-one")

	original := &SessionData{
		Username: "super_admin",
		UserID:   42,
		Flash:    &Flash{Message: "пароль: ", Data: "Gen3rated!Pwd"},
	}
	encrypted, err := sm.Encrypt(original)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "super_admin")
	assert.NotContains(t, encrypted, "Gen3rated!Pwd")

	decrypted, err := sm.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, original.Username, decrypted.Username)
	assert.Equal(t, original.UserID, decrypted.UserID)
	require.NotNil(t, decrypted.Flash)
	assert.Equal(t, original.Flash.Data, decrypted.Flash.Data)
}

// TestDecryptWrongKey: cookie, выпущенный с другим секретом, не принимается.
func TestDecryptWrongKey(t *testing.T) {
	issuer := newTestSessionManager(t, "secret-one")
	verifier := newTestSessionManager(t, "secret-two")

	encrypted, err := issuer.Encrypt(&SessionData{Username: "super_admin", UserID: 1})
	require.NoError(t, err)

	_, err = verifier.Decrypt(encrypted)
	assert.Error(t, err)
}

// TestDecryptTamperedValue: подмена байтов ловится аутентификацией GCM.
func TestDecryptTamperedValue(t *testing.T) {
	sm := newTestSessionManager(t, "secret-one")

	encrypted, err := sm.Encrypt(&SessionData{Username: "super_admin", UserID: 1})
	require.NoError(t, err)

	tampered := []byte(encrypted)
	tampered[len(tampered)/2] ^= 'x'
	_, err = sm.Decrypt(string(tampered))
	assert.Error(t, err)
}

// TestDecryptGarbage: мусор вместо cookie — ошибка, не паника.
func TestDecryptGarbage(t *testing.T) {
	sm := newTestSessionManager(t, "secret-one")

	for _, bad := range []string{"", "not-base64!!!", "YWJj"} {
		_, err := sm.Decrypt(bad)
		assert.Error(t, err)
	}
}

// TestSetAndGetSessionCookie: полный цикл через http.ResponseWriter и запрос.
func TestSetAndGetSessionCookie(t *testing.T) {
	sm := newTestSessionManager(t, "secret-one")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.SetSessionCookie(rec, &SessionData{Username: "super_admin", UserID: 7}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.AddCookie(cookies[0])

	session, err := sm.GetSessionFromRequest(req)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, int64(7), session.UserID)
}

// TestGetSessionNoCookie: отсутствие cookie — не ошибка, просто нет сессии.
func TestGetSessionNoCookie(t *testing.T) {
	sm := newTestSessionManager(t, "secret-one")

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	session, err := sm.GetSessionFromRequest(req)
	assert.NoError(t, err)
	assert.Nil(t, session)
}
