package admins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akeeper.ru/botpanel/internal/common"
	"akeeper.ru/botpanel/internal/password"
)

// mockAdminRepo — хранилище администраторов в памяти.
type mockAdminRepo struct {
	byUsername map[string]*AdminUser
	nextID     int64

	createCalls int
	updatePwd   int
}

func newMockAdminRepo() *mockAdminRepo {
	return &mockAdminRepo{byUsername: make(map[string]*AdminUser), nextID: 1}
}

func (m *mockAdminRepo) Create(ctx context.Context, a *AdminUser) (*AdminUser, error) {
	m.createCalls++
	created := *a
	created.UserID = m.nextID
	m.nextID++
	m.byUsername[a.Username] = &created
	return &created, nil
}

func (m *mockAdminRepo) GetByID(ctx context.Context, userID int64) (*AdminUser, error) {
	for _, a := range m.byUsername {
		if a.UserID == userID {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockAdminRepo) GetByUsername(ctx context.Context, username string) (*AdminUser, error) {
	return m.byUsername[username], nil
}

func (m *mockAdminRepo) GetAll(ctx context.Context) ([]*AdminUser, error) {
	var out []*AdminUser
	for _, a := range m.byUsername {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAdminRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.byUsername)), nil
}

func (m *mockAdminRepo) Update(ctx context.Context, userID int64, ch Changes) (*AdminUser, error) {
	a, _ := m.GetByID(ctx, userID)
	if a == nil {
		return nil, nil
	}
	if ch.Name != nil {
		a.Name = *ch.Name
	}
	if ch.IsBlocked != nil {
		a.IsBlocked = *ch.IsBlocked
	}
	if ch.IsSuperAdmin != nil {
		a.IsSuperAdmin = *ch.IsSuperAdmin
	}
	return a, nil
}

func (m *mockAdminRepo) UpdatePasswordByUsername(ctx context.Context, username, passwordHash string) (*AdminUser, error) {
	m.updatePwd++
	a := m.byUsername[username]
	if a == nil {
		return nil, nil
	}
	a.PasswordHash = passwordHash
	return a, nil
}

func (m *mockAdminRepo) Delete(ctx context.Context, userID int64) (bool, error) {
	for username, a := range m.byUsername {
		if a.UserID == userID {
			delete(m.byUsername, username)
			return true, nil
		}
	}
	return false, nil
}

// TestCreateGeneratesVerifiablePassword: хеш созданного админа проверяется
// возвращённым сырым паролем и не равен ему.
func TestCreateGeneratesVerifiablePassword(t *testing.T) {
	repo := newMockAdminRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), "New Admin", "new_admin", "", false)
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.False(t, created.Admin.IsSuperAdmin)
	assert.NotEmpty(t, created.Plaintext)
	assert.NotEqual(t, created.Plaintext, created.Admin.PasswordHash)
	assert.True(t, password.Verify(created.Plaintext, created.Admin.PasswordHash))
}

// TestCreateWithSuppliedPassword: заданный пароль хешируется, не подменяется.
func TestCreateWithSuppliedPassword(t *testing.T) {
	repo := newMockAdminRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), "Admin One", "admin_one", "chosen-Pass-1!", true)
	require.NoError(t, err)

	assert.Equal(t, "chosen-Pass-1!", created.Plaintext)
	assert.True(t, created.Admin.IsSuperAdmin)
	assert.True(t, password.Verify("chosen-Pass-1!", created.Admin.PasswordHash))
}

// TestCreateValidationBeforeRepository: короткие name/username отклоняются
// до единственного обращения к хранилищу.
func TestCreateValidationBeforeRepository(t *testing.T) {
	repo := newMockAdminRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "Ann", "ab", "", false)
	require.Error(t, err)

	ve, ok := common.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "username")
	assert.Equal(t, 0, repo.createCalls)
}

// TestCreateShortSuppliedPassword: пароль короче 8 символов — ошибка валидации.
func TestCreateShortSuppliedPassword(t *testing.T) {
	svc := NewService(newMockAdminRepo())

	_, err := svc.Create(context.Background(), "Admin Two", "admin_two", "short", false)
	require.Error(t, err)

	ve, ok := common.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "password")
}

// TestResetPasswordRotatesHash: сброс меняет хеш, старый пароль перестаёт
// подходить, новый — проверяется.
func TestResetPasswordRotatesHash(t *testing.T) {
	repo := newMockAdminRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), "Admin Three", "admin_three", "", false)
	require.NoError(t, err)
	oldPlaintext := created.Plaintext

	reset, err := svc.ResetPassword(context.Background(), "admin_three")
	require.NoError(t, err)
	require.NotNil(t, reset)

	assert.NotEqual(t, oldPlaintext, reset.Plaintext)
	assert.False(t, password.Verify(oldPlaintext, reset.Admin.PasswordHash))
	assert.True(t, password.Verify(reset.Plaintext, reset.Admin.PasswordHash))
}

// TestResetPasswordMissingAdmin: несуществующий username — nil-результат,
// ни одна строка не изменена.
func TestResetPasswordMissingAdmin(t *testing.T) {
	repo := newMockAdminRepo()
	svc := NewService(repo)

	reset, err := svc.ResetPassword(context.Background(), "nobody_here")
	require.NoError(t, err)
	assert.Nil(t, reset)
	assert.Empty(t, repo.byUsername)
}
