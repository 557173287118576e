package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"akeeper.ru/botpanel/internal/config"
)

// mockRepo — хранилище в памяти, считающее обращения.
type mockRepo struct {
	byTelegramID map[int64]*User
	nextID       int64

	createCalls int
	createErr   error
	getCalls    int
}

func newMockRepo() *mockRepo {
	return &mockRepo{byTelegramID: make(map[int64]*User), nextID: 1}
}

func (m *mockRepo) Create(ctx context.Context, u *User) (*User, error) {
	m.createCalls++
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return nil, err
	}
	created := *u
	created.UserID = m.nextID
	m.nextID++
	m.byTelegramID[u.TelegramID] = &created
	return &created, nil
}

func (m *mockRepo) GetByID(ctx context.Context, userID int64) (*User, error) {
	for _, u := range m.byTelegramID {
		if u.UserID == userID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	m.getCalls++
	return m.byTelegramID[telegramID], nil
}

func (m *mockRepo) GetAll(ctx context.Context) ([]*User, error) {
	var out []*User
	for _, u := range m.byTelegramID {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.byTelegramID)), nil
}

func (m *mockRepo) Update(ctx context.Context, userID int64, ch Changes) (*User, error) {
	u, _ := m.GetByID(ctx, userID)
	if u == nil {
		return nil, nil
	}
	if ch.Language != nil {
		u.Language = *ch.Language
	}
	if ch.Name != nil {
		u.Name = *ch.Name
	}
	if ch.BotBlocked != nil {
		u.BotBlocked = *ch.BotBlocked
	}
	return u, nil
}

func (m *mockRepo) Delete(ctx context.Context, userID int64) (bool, error) {
	for tgID, u := range m.byTelegramID {
		if u.UserID == userID {
			delete(m.byTelegramID, tgID)
			return true, nil
		}
	}
	return false, nil
}

func testConfig() *config.Config {
	return &config.Config{
		SupportedLocales: []string{"en", "ru"},
		DefaultLocale:    "en",
	}
}

func strPtr(s string) *string { return &s }

// TestGetOrCreateOnContactCreatesWithSupportedLocale: language_code из
// поддерживаемого списка становится языком пользователя.
func TestGetOrCreateOnContactCreatesWithSupportedLocale(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, testConfig())

	user, err := svc.GetOrCreateOnContact(context.Background(), Contact{
		TelegramID:   123456789,
		Name:         "Test",
		Username:     strPtr("test_user"),
		LanguageCode: strPtr("ru"),
	})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(123456789), user.TelegramID)
	assert.Equal(t, "ru", user.Language)
	assert.Equal(t, 1, repo.createCalls)
}

// TestGetOrCreateOnContactFallsBackToDefaultLocale: незнакомая локаль → DefaultLocale.
func TestGetOrCreateOnContactFallsBackToDefaultLocale(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, testConfig())

	user, err := svc.GetOrCreateOnContact(context.Background(), Contact{
		TelegramID:   42,
		Name:         "Hans",
		LanguageCode: strPtr("de"),
	})

	require.NoError(t, err)
	assert.Equal(t, "en", user.Language)
}

// TestGetOrCreateOnContactNilLocale: Telegram не сообщил локаль → DefaultLocale.
func TestGetOrCreateOnContactNilLocale(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, testConfig())

	user, err := svc.GetOrCreateOnContact(context.Background(), Contact{
		TelegramID: 43,
		Name:       "NoLocale",
	})

	require.NoError(t, err)
	assert.Equal(t, "en", user.Language)
}

// TestGetOrCreateOnContactIdempotent: повторный контакт возвращает того же
// пользователя без второго INSERT.
func TestGetOrCreateOnContactIdempotent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, testConfig())
	contact := Contact{TelegramID: 7, Name: "Same", LanguageCode: strPtr("ru")}

	first, err := svc.GetOrCreateOnContact(context.Background(), contact)
	require.NoError(t, err)

	second, err := svc.GetOrCreateOnContact(context.Background(), contact)
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 1, repo.createCalls)
}

// TestGetOrCreateOnContactLostRaceRereadsWinner: проигравший гонку первого
// контакта получает запись победителя, а не ошибку. Конфликт вставки
// приходит из репозитория как nil без ошибки (ON CONFLICT DO NOTHING),
// поэтому транзакция остаётся живой и перечитывание в ней возможно —
// после ошибочной команды Postgres отвечал бы SQLSTATE 25P02 на всё
// вплоть до rollback.
func TestGetOrCreateOnContactLostRaceRereadsWinner(t *testing.T) {
	winner := &User{UserID: 99, TelegramID: 555, Name: "Winner", Language: "en"}
	repo := &racingRepo{mockRepo: newMockRepo(), winner: winner}
	svc := NewService(repo, testConfig())

	user, err := svc.GetOrCreateOnContact(context.Background(), Contact{
		TelegramID: 555, Name: "Loser",
	})

	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, winner.UserID, user.UserID)
	assert.Equal(t, 2, repo.reads)
}

// racingRepo: первое чтение — промах, INSERT натыкается на строку
// победителя (DO NOTHING, ноль строк), повторное чтение — запись победителя.
type racingRepo struct {
	*mockRepo
	winner *User
	reads  int
}

func (r *racingRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	r.reads++
	if r.reads == 1 {
		return nil, nil
	}
	return r.winner, nil
}

func (r *racingRepo) Create(ctx context.Context, u *User) (*User, error) {
	return nil, nil
}

// TestUpdateMissingUser: обновление исчезнувшего пользователя — nil без ошибки.
func TestUpdateMissingUser(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, testConfig())

	updated, err := svc.Update(context.Background(), 404, Changes{Name: strPtr("Ghost")})

	require.NoError(t, err)
	assert.Nil(t, updated)
}

// TestUpdateLanguageVisibleImmediately: смена языка видна сразу, count не меняется.
func TestUpdateLanguageVisibleImmediately(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, testConfig())

	user, err := svc.GetOrCreateOnContact(context.Background(), Contact{
		TelegramID: 1, Name: "T", LanguageCode: strPtr("ru"),
	})
	require.NoError(t, err)
	require.Equal(t, "ru", user.Language)

	updated, err := svc.Update(context.Background(), user.UserID, Changes{Language: strPtr("en")})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "en", updated.Language)

	got, err := svc.GetByID(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "en", got.Language)

	count, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
