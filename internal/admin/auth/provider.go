// Package auth — provider.go реализует машину состояний аутентификации
// консоли: Anonymous → Authenticating → Authenticated → (Blocked | Anonymous).
// Внутренние сбои на логине схлопываются в одно расплывчатое сообщение
// (ничего о внутренностях наружу), но "неверный username" / "неверный
// пароль" / "заблокирован" различимы для UX. Блокировка проверяется
// ПОСЛЕ пароля, чтобы не раскрывать существование учётки по ответу.
package auth

import (
	"context"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/features/admins"
	"akeeper.ru/botpanel/internal/password"
)

// Сообщения неуспешного логина. Generic-вариант намеренно не говорит,
// что именно сломалось.
const (
	MsgInvalidUsername = "Invalid username"
	MsgInvalidPassword = "Invalid password"
	MsgAccountBlocked  = "Your account is blocked"
	MsgGenericFailure  = "An unexpected error occurred during login. Please contact administrator"
)

// LoginFailedError — неуспех логина с сообщением, пригодным для показа.
type LoginFailedError struct {
	Message string
}

func (e *LoginFailedError) Error() string {
	return e.Message
}

// AdminDirectory — поиск администраторов, нужный провайдеру.
// Сессионный scope даёт свежий экземпляр на каждый запрос.
type AdminDirectory interface {
	GetByUsername(ctx context.Context, username string) (*admins.AdminUser, error)
}

// Provider — провайдер аутентификации админ-консоли.
type Provider struct {
	sessions *SessionManager
}

// NewProvider создаёт провайдер поверх менеджера сессий.
func NewProvider(sessions *SessionManager) *Provider {
	return &Provider{sessions: sessions}
}

// Login аутентифицирует оператора. При успехе возвращает администратора
// и новую сессию {username, user_id}; сессионный cookie НЕ выпускается
// здесь — вызывающий выпускает его через IssueSession уже после фиксации
// транзакции запроса, чтобы при откате клиент не остался с валидным cookie.
//
// Порядок проверок фиксирован:
//  1. валидация формы — ДО любого обращения к БД;
//  2. сбой поиска → generic-сообщение (детали только в лог);
//  3. нет такого администратора → MsgInvalidUsername;
//  4. пароль не подошёл → MsgInvalidPassword;
//  5. заблокирован → MsgAccountBlocked (только после проверки пароля);
//  6. успех → Authenticated.
func (p *Provider) Login(ctx context.Context, dir AdminDirectory, username, plaintext string) (*admins.AdminUser, *SessionData, error) {
	if len(username) < admins.MinUsernameLength {
		return nil, nil, common.NewValidationError("username",
			fmt.Sprintf("Username must be at least %d characters", admins.MinUsernameLength))
	}
	if len(plaintext) < password.MinLength {
		return nil, nil, common.NewValidationError("password",
			fmt.Sprintf("Password must be at least %d characters", password.MinLength))
	}

	admin, err := dir.GetByUsername(ctx, username)
	if err != nil {
		log.WithError(err).Error("Ошибка поиска администратора при логине")
		return nil, nil, &LoginFailedError{Message: MsgGenericFailure}
	}
	if admin == nil {
		return nil, nil, &LoginFailedError{Message: MsgInvalidUsername}
	}

	if !password.Verify(plaintext, admin.PasswordHash) {
		return nil, nil, &LoginFailedError{Message: MsgInvalidPassword}
	}

	if admin.IsBlocked {
		return nil, nil, &LoginFailedError{Message: MsgAccountBlocked}
	}

	log.WithFields(log.Fields{
		"user_id":  admin.UserID,
		"username": admin.Username,
	}).Info("Администратор вошёл в консоль")

	return admin, &SessionData{Username: admin.Username, UserID: admin.UserID}, nil
}

// IssueSession записывает сессию в cookie ответа.
func (p *Provider) IssueSession(w http.ResponseWriter, session *SessionData) error {
	if err := p.sessions.SetSessionCookie(w, session); err != nil {
		log.WithError(err).Error("Ошибка записи сессионного cookie")
		return fmt.Errorf("ошибка записи сессионного cookie: %w", err)
	}
	return nil
}

// Authenticate разрешает личность запроса. Администратор перечитывается
// из БД на КАЖДЫЙ запрос — блокировка, выставленная после логина,
// срабатывает на следующем же запросе при неизменном cookie.
//
// Любой внутренний сбой — это "не аутентифицирован" (fail closed),
// вторым значением возвращается сессия для операций с flash-данными.
func (p *Provider) Authenticate(ctx context.Context, dir AdminDirectory, r *http.Request) (*admins.AdminUser, *SessionData) {
	session, err := p.sessions.GetSessionFromRequest(r)
	if err != nil {
		log.WithError(err).Debug("Сессионный cookie не читается")
		return nil, nil
	}
	if session == nil || session.Username == "" {
		return nil, nil
	}

	admin, err := dir.GetByUsername(ctx, session.Username)
	if err != nil {
		log.WithError(err).Error("Ошибка перечитывания администратора по сессии")
		return nil, nil
	}
	if admin == nil || admin.IsBlocked {
		return nil, nil
	}

	return admin, session
}

// Logout стирает сессию целиком.
func (p *Provider) Logout(w http.ResponseWriter, session *SessionData) {
	if session != nil {
		log.WithFields(log.Fields{
			"user_id":  session.UserID,
			"username": session.Username,
		}).Info("Администратор вышел из консоли")
	}
	p.sessions.ClearSessionCookie(w)
}

// SetFlash дописывает одноразовые UI-данные в сессию. В cookie изменение
// попадает следующим вызовом IssueSession.
func (p *Provider) SetFlash(session *SessionData, flash *Flash) {
	session.Flash = flash
}

// PopFlash забирает одноразовые данные и стирает их из сессии.
// Возвращает nil, если показывать нечего. Стирание фиксируется в cookie
// следующим вызовом IssueSession.
func (p *Provider) PopFlash(session *SessionData) *Flash {
	if session == nil || session.Flash == nil {
		return nil
	}
	flash := session.Flash
	session.Flash = nil
	return flash
}
