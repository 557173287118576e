package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"akeeper.ru/botpanel/internal/admin/auth"
	"akeeper.ru/botpanel/internal/admin/views"
	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/db/postgres"
	"akeeper.ru/botpanel/internal/features/admins"
)

// response — отложенный ответ обработчика. Тело (и заголовки из after)
// пишутся клиенту только после commit транзакции запроса: клиент не
// увидит ни 200, ни Set-Cookie на данных, которые потом откатились.
type response struct {
	status int
	body   any
	// after выполняется после commit, перед записью тела —
	// единственное место, где обработчик может тронуть заголовки
	after func(w http.ResponseWriter) error
}

func ok(body any) *response      { return &response{status: http.StatusOK, body: body} }
func created(body any) *response { return &response{status: http.StatusCreated, body: body} }

// envHandler — обработчик, выполняющийся внутри транзакции запроса.
// ResponseWriter ему намеренно не передаётся: всё, что уходит клиенту,
// идёт через response.
type envHandler func(env *Env, r *http.Request) (*response, error)

// handle выполняет обработчик внутри одного scope БД.
// Аутентификация выполняется на сервисах той же транзакции.
func (s *Server) handle(h envHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp *response
		err := s.scope.Run(r.Context(), func(q postgres.Querier) error {
			env := newEnv(q, s.cfg)
			env.Actor, env.Session = s.provider.Authenticate(r.Context(), env.Admins, r)
			var hErr error
			resp, hErr = h(env, r)
			return hErr
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if resp.after != nil {
			if err := resp.after(w); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		writeJSON(w, resp.status, resp.body)
	}
}

// authed — как handle, но требует аутентифицированного администратора.
func (s *Server) authed(h envHandler) http.HandlerFunc {
	return s.handle(func(env *Env, r *http.Request) (*response, error) {
		if env.Actor == nil {
			return nil, errNotAuthenticated
		}
		return h(env, r)
	})
}

var errNotAuthenticated = errors.New("запрос не аутентифицирован")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Ошибка записи JSON-ответа")
	}
}

// writeError переводит ошибку в HTTP-статус. Внутренние ошибки полностью
// попадают в лог, клиенту уходит только общее сообщение.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var lf *auth.LoginFailedError
	var ve *common.ValidationError
	switch {
	case errors.As(err, &lf):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": lf.Message})
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, errNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	case errors.Is(err, common.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, common.ErrPoolExhausted):
		log.WithError(err).Warn("Запрос отклонён: пул БД исчерпан")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "service temporarily unavailable"})
	default:
		log.WithFields(log.Fields{"path": r.URL.Path, "method": r.Method}).
			WithError(err).Error("Внутренняя ошибка обработки запроса")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		log.WithError(err).Error("Healthcheck: БД недоступна")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(env *Env, r *http.Request) (*response, error) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, common.NewValidationError("body", "invalid JSON body")
	}

	admin, session, err := s.provider.Login(r.Context(), env.Admins, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	resp := ok(map[string]any{"username": admin.Username, "is_super_admin": admin.IsSuperAdmin})
	resp.after = func(w http.ResponseWriter) error {
		return s.provider.IssueSession(w, session)
	}
	return resp, nil
}

func (s *Server) handleLogout(env *Env, _ *http.Request) (*response, error) {
	resp := ok(map[string]string{"status": "logged out"})
	resp.after = func(w http.ResponseWriter) error {
		s.provider.Logout(w, env.Session)
		return nil
	}
	return resp, nil
}

// handleFlash отдаёт одноразовые данные сессии (сырой пароль после
// создания или сброса). Повторный запрос вернёт пустой ответ.
func (s *Server) handleFlash(env *Env, _ *http.Request) (*response, error) {
	flash := s.provider.PopFlash(env.Session)
	if flash == nil {
		return ok(map[string]any{"flash": nil}), nil
	}
	resp := ok(map[string]any{"flash": map[string]string{"message": flash.Message, "data": flash.Data}})
	resp.after = func(w http.ResponseWriter) error {
		return s.provider.IssueSession(w, env.Session)
	}
	return resp, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, common.NewValidationError("id", "id must be an integer")
	}
	return id, nil
}

// decodeFields читает JSON-тело в поля формы представления.
func decodeFields(r *http.Request) (views.Fields, error) {
	var fields views.Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, common.NewValidationError("body", "invalid JSON body")
	}
	return fields, nil
}

func (s *Server) handleUserList(env *Env, r *http.Request) (*response, error) {
	list, err := env.UserView.List(r.Context())
	if err != nil {
		return nil, err
	}
	return ok(map[string]any{"users": list}), nil
}

func (s *Server) handleUserEdit(env *Env, r *http.Request) (*response, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	fields, err := decodeFields(r)
	if err != nil {
		return nil, err
	}
	updated, err := env.UserView.Edit(r.Context(), id, fields)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return &response{status: http.StatusNotFound, body: map[string]string{"error": "user not found"}}, nil
	}
	return ok(updated), nil
}

func (s *Server) handleUserDelete(env *Env, r *http.Request) (*response, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	deleted, err := env.UserView.Delete(r.Context(), env.Actor, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return &response{status: http.StatusNotFound, body: map[string]string{"error": "user not found"}}, nil
	}
	return ok(map[string]string{"status": "deleted"}), nil
}

// adminAccount — администратор в ответе API, без хеша пароля.
type adminAccount struct {
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	IsBlocked    bool   `json:"is_blocked"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

func toAccount(a *admins.AdminUser) adminAccount {
	return adminAccount{
		UserID:       a.UserID,
		Name:         a.Name,
		Username:     a.Username,
		IsBlocked:    a.IsBlocked,
		IsSuperAdmin: a.IsSuperAdmin,
	}
}

func (s *Server) handleAdminList(env *Env, r *http.Request) (*response, error) {
	list, err := env.Admins.GetAll(r.Context())
	if err != nil {
		return nil, err
	}
	accounts := make([]adminAccount, 0, len(list))
	for _, a := range list {
		accounts = append(accounts, toAccount(a))
	}
	return ok(map[string]any{"admins": accounts}), nil
}

// handleAdminCreate создаёт администратора. Сырой пароль кладётся во flash
// сессии создавшего и забирается отдельным запросом /admin/flash — в теле
// ответа его нет, и в логи он не попадает.
func (s *Server) handleAdminCreate(env *Env, r *http.Request) (*response, error) {
	fields, err := decodeFields(r)
	if err != nil {
		return nil, err
	}
	result, err := env.AdminView.Create(r.Context(), env.Actor, fields)
	if err != nil {
		return nil, err
	}
	createdAdmin := result.(*admins.CreatedAdmin)

	s.provider.SetFlash(env.Session, &auth.Flash{
		Message: "Пароль созданного администратора " + createdAdmin.Admin.Username,
		Data:    createdAdmin.Plaintext,
	})
	resp := created(toAccount(createdAdmin.Admin))
	resp.after = func(w http.ResponseWriter) error {
		return s.provider.IssueSession(w, env.Session)
	}
	return resp, nil
}

func (s *Server) handleAdminEdit(env *Env, r *http.Request) (*response, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	fields, err := decodeFields(r)
	if err != nil {
		return nil, err
	}
	updated, err := env.AdminView.Edit(r.Context(), id, fields)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return &response{status: http.StatusNotFound, body: map[string]string{"error": "admin not found"}}, nil
	}
	return ok(toAccount(updated.(*admins.AdminUser))), nil
}

func (s *Server) handleAdminDelete(env *Env, r *http.Request) (*response, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	deleted, err := env.AdminView.Delete(r.Context(), env.Actor, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return &response{status: http.StatusNotFound, body: map[string]string{"error": "admin not found"}}, nil
	}
	return ok(map[string]string{"status": "deleted"}), nil
}

func (s *Server) handleAdminResetPassword(env *Env, r *http.Request) (*response, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	result, err := env.AdminView.ResetPassword(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &response{status: http.StatusNotFound, body: map[string]string{"error": "admin not found"}}, nil
	}

	s.provider.SetFlash(env.Session, &auth.Flash{
		Message: "Новый пароль администратора " + result.Admin.Username,
		Data:    result.Plaintext,
	})
	resp := ok(toAccount(result.Admin))
	resp.after = func(w http.ResponseWriter) error {
		return s.provider.IssueSession(w, env.Session)
	}
	return resp, nil
}
