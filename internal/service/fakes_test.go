package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/cache"
	"github.com/spec-kit/petcare-service/internal/domain"
	"github.com/spec-kit/petcare-service/internal/events"
	"github.com/spec-kit/petcare-service/internal/repository"
)

var (
	testSecret = []byte("service-test-secret")
	errDown    = errors.New("connection refused")
)

const testIssuer = "petcare-test"

type memoryAccounts struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*domain.Account
	failErr error
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{nextID: 1, byID: make(map[int64]*domain.Account)}
}

func (m *memoryAccounts) seed(id int64, email string, roles ...string) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	account := &domain.Account{ID: id, Email: email, Name: "seeded", Roles: roles}
	m.byID[id] = account
	if id >= m.nextID {
		m.nextID = id + 1
	}
	return account
}

func (m *memoryAccounts) Create(_ context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	for _, existing := range m.byID {
		if existing.Email == account.Email {
			return repository.ErrDuplicate
		}
	}
	account.ID = m.nextID
	m.nextID++
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	stored := *account
	m.byID[account.ID] = &stored
	return nil
}

func (m *memoryAccounts) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	account, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memoryAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, account := range m.byID {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryAccounts) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memoryRefreshTokens struct {
	mu        sync.Mutex
	byAccount map[int64]string
	failErr   error
}

func newMemoryRefreshTokens() *memoryRefreshTokens {
	return &memoryRefreshTokens{byAccount: make(map[int64]string)}
}

func (m *memoryRefreshTokens) Upsert(_ context.Context, accountID int64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.byAccount[accountID] = token
	return nil
}

func (m *memoryRefreshTokens) FindByAccount(_ context.Context, accountID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return "", m.failErr
	}
	token, ok := m.byAccount[accountID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return token, nil
}

func (m *memoryRefreshTokens) FindByToken(_ context.Context, token string) (*domain.StoredRefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for accountID, stored := range m.byAccount {
		if stored == token {
			return &domain.StoredRefreshToken{AccountID: accountID, Token: stored}, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryRefreshTokens) Delete(_ context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	delete(m.byAccount, accountID)
	return nil
}

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) RecordRenewal(outcome string)    { o.add(outcome) }
func (o *outcomes) RecordRoleLookup(outcome string) { o.add(outcome) }

func (o *outcomes) add(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, outcome)
}

func (o *outcomes) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seen...)
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sessionFixture struct {
	clock     *fixedClock
	accounts  *memoryAccounts
	refresh   *memoryRefreshTokens
	redis     *miniredis.Miniredis
	cache     *cache.RoleCache
	tokens    *auth.TokenManager
	validator *auth.TokenValidator
	recorder  *outcomes
	sessions  *SessionService

	mu        sync.Mutex
	published []events.Event
}

func newSessionFixture(t *testing.T, rotate bool) *sessionFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &sessionFixture{
		clock:    &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		accounts: newMemoryAccounts(),
		refresh:  newMemoryRefreshTokens(),
		redis:    mr,
		cache:    cache.NewRoleCache(client, time.Second),
		recorder: &outcomes{},
	}
	f.tokens = auth.NewTokenManager(testSecret, testIssuer, time.Minute, 14*24*time.Hour, auth.WithClock(f.clock.Now))
	f.validator = auth.NewTokenValidator(testSecret, testIssuer, auth.WithClock(f.clock.Now))

	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.published = append(f.published, e)
		return nil
	}
	for _, et := range []events.EventType{events.EventSessionStarted, events.EventSessionRenewed, events.EventSessionEnded, events.EventAccountDeleted} {
		dispatcher.Subscribe(et, record)
	}

	f.sessions = NewSessionService(SessionDependencies{
		Tokens:               f.tokens,
		Validator:            f.validator,
		RefreshRepo:          f.refresh,
		AccountRepo:          f.accounts,
		RoleCache:            f.cache,
		Dispatcher:           dispatcher,
		Recorder:             f.recorder,
		RoleCacheTTL:         6 * time.Hour,
		RotateRefreshOnRenew: rotate,
	})
	f.sessions.now = f.clock.Now
	return f
}

func (f *sessionFixture) eventTypes() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]events.EventType, 0, len(f.published))
	for _, e := range f.published {
		types = append(types, e.Type)
	}
	return types
}

func (f *sessionFixture) refreshToken(t *testing.T, subject string) string {
	t.Helper()
	tok, err := f.tokens.IssueRefresh(subject)
	require.NoError(t, err)
	return tok.Value
}
