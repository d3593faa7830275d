package auth

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_dashboard/internal/api"
	"trade_dashboard/internal/database"
	apperrors "trade_dashboard/internal/errors"
	"trade_dashboard/internal/models"
	"trade_dashboard/internal/repository"
	"trade_dashboard/internal/secure"
)

type memStore struct {
	mu      sync.Mutex
	values  map[string]string
	failSet bool
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (s *memStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("disk full")
	}
	s.values[key] = value
	return nil
}

func (s *memStore) SetSecret(key, value string) error { return s.Set(key, value) }

func (s *memStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

type fakeAuthn struct {
	cred models.Credential
	res  api.Result
}

func (f *fakeAuthn) Login(ctx context.Context, req api.LoginRequest) (models.Credential, api.Result) {
	return f.cred, f.res
}

func (f *fakeAuthn) Signup(ctx context.Context, req api.SignupRequest) (models.Credential, api.Result) {
	return f.cred, f.res
}

type fakeVerifier struct {
	mu     sync.Mutex
	calls  int
	tokens []string
	res    api.Result
}

func (f *fakeVerifier) Verify(ctx context.Context, token string) api.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, token)
	return f.res
}

type recordingNav struct {
	mu   sync.Mutex
	urls []string
}

func (n *recordingNav) Redirect(url string) {
	n.mu.Lock()
	n.urls = append(n.urls, url)
	n.mu.Unlock()
}

func (n *recordingNav) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

func TestLoginPersistsCredential(t *testing.T) {
	store := newMemStore()
	authn := &fakeAuthn{
		cred: models.Credential{Token: "tok-1", User: &models.User{ID: "u1", Username: "asha"}},
		res:  api.Result{Success: true, StatusCode: 200},
	}
	m := NewManager(store, nil).WithAuthenticator(authn)

	out := m.Login(context.Background(), "asha", "secret")

	assert.True(t, out.Success)
	assert.Equal(t, "tok-1", m.Token())
	require.NotNil(t, m.User())
	assert.Equal(t, "asha", m.User().Username)
	assert.Equal(t, "tok-1", store.values[repository.KeyToken])
	assert.JSONEq(t, `{"_id":"u1","username":"asha"}`, store.values[repository.KeyUser])
	assert.False(t, m.IsLoading())
	assert.Empty(t, m.LastError())
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		res  api.Result
		want string
	}{
		{"backend message", api.Result{Message: "Invalid credentials", FromServer: true, StatusCode: 401}, "Invalid credentials"},
		{"transport text ignored", api.Result{Message: "connection refused"}, LoginFailedMessage},
		{"nothing at all", api.Result{StatusCode: 500}, LoginFailedMessage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			m := NewManager(store, nil).WithAuthenticator(&fakeAuthn{res: tc.res})

			out := m.Login(context.Background(), "asha", "bad")

			assert.False(t, out.Success)
			assert.Equal(t, tc.want, out.Message)
			assert.Equal(t, tc.want, m.LastError())
			assert.Empty(t, m.Token())
			assert.Empty(t, store.values)
		})
	}
}

func TestSignupFallbackMessage(t *testing.T) {
	m := NewManager(newMemStore(), nil).WithAuthenticator(&fakeAuthn{res: api.Result{Message: "timeout"}})

	out := m.Signup(context.Background(), "asha", "a@example.com", "pw")

	assert.False(t, out.Success)
	assert.Equal(t, SignupFailedMessage, out.Message)
}

func TestLoginStoreFailureReportsFallback(t *testing.T) {
	store := newMemStore()
	store.failSet = true
	m := NewManager(store, nil).WithAuthenticator(&fakeAuthn{
		cred: models.Credential{Token: "tok"},
		res:  api.Result{Success: true},
	})

	out := m.Login(context.Background(), "asha", "pw")

	assert.False(t, out.Success)
	assert.Equal(t, LoginFailedMessage, out.Message)
	assert.Empty(t, m.Token())
}

func TestBootstrapKeepsUser(t *testing.T) {
	store := newMemStore()
	store.values[repository.KeyUser] = `{"username":"asha"}`
	m := NewManager(store, nil)
	require.NoError(t, m.Load())

	require.NoError(t, m.Bootstrap("from-url"))

	assert.Equal(t, "from-url", m.Token())
	require.NotNil(t, m.User())
	assert.Equal(t, "asha", m.User().Username)
	assert.Error(t, m.Bootstrap(""))
}

func TestLoadDropsUnreadableUser(t *testing.T) {
	store := newMemStore()
	store.values[repository.KeyToken] = "tok"
	store.values[repository.KeyUser] = "{not json"
	m := NewManager(store, nil)

	require.NoError(t, m.Load())

	assert.Equal(t, "tok", m.Token())
	assert.Nil(t, m.User())
}

func TestCredentialSurvivesRestart(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations())

	sealer, err := secure.NewSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	store := repository.NewStorageRepository(db, sealer)

	first := NewManager(store, nil).WithAuthenticator(&fakeAuthn{
		cred: models.Credential{Token: "persisted", User: &models.User{Username: "ravi"}},
		res:  api.Result{Success: true},
	})
	require.True(t, first.Login(context.Background(), "ravi", "pw").Success)

	second := NewManager(store, nil)
	require.NoError(t, second.Load())
	assert.Equal(t, "persisted", second.Token())
	require.NotNil(t, second.User())
	assert.Equal(t, "ravi", second.User().Username)

	require.NoError(t, second.Clear())
	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestGuardWithoutTokenMakesNoCall(t *testing.T) {
	verifier := &fakeVerifier{res: api.Result{Success: true}}
	nav := &recordingNav{}
	g := NewGuard(NewManager(newMemStore(), nil), verifier, nav, "https://app.example.com/login", nil)

	assert.Equal(t, models.SessionVerifying, g.State())
	state := g.Verify(context.Background())

	assert.Equal(t, models.SessionUnauthenticated, state)
	assert.Zero(t, verifier.calls)
	assert.Equal(t, []string{"https://app.example.com/login"}, nav.visited())
}

func TestGuardAcceptsValidToken(t *testing.T) {
	store := newMemStore()
	store.values[repository.KeyToken] = "good"
	m := NewManager(store, nil)
	require.NoError(t, m.Load())

	verifier := &fakeVerifier{res: api.Result{Success: true, StatusCode: 200}}
	nav := &recordingNav{}
	g := NewGuard(m, verifier, nav, "/login", nil)

	var changes []models.SessionState
	g.OnChange(func(s models.SessionState) { changes = append(changes, s) })

	assert.Equal(t, models.SessionAuthenticated, g.Verify(context.Background()))
	assert.Equal(t, []string{"good"}, verifier.tokens)
	assert.Empty(t, nav.visited())
	assert.Equal(t, []models.SessionState{models.SessionAuthenticated}, changes)

	// Settled guards do not verify again.
	g.Verify(context.Background())
	assert.Equal(t, 1, verifier.calls)
}

func TestGuardClearsRejectedToken(t *testing.T) {
	store := newMemStore()
	store.values[repository.KeyToken] = "expired"
	store.values[repository.KeyUser] = `{"username":"asha"}`
	m := NewManager(store, nil)
	require.NoError(t, m.Load())

	verifier := &fakeVerifier{res: api.Result{StatusCode: 401, Kind: apperrors.ErrUnauthorized}}
	nav := &recordingNav{}
	g := NewGuard(m, verifier, nav, "/login", nil)

	assert.Equal(t, models.SessionUnauthenticated, g.Verify(context.Background()))
	assert.Empty(t, m.Token())
	assert.Nil(t, m.User())
	assert.Empty(t, store.values)
	assert.Equal(t, []string{"/login"}, nav.visited())
}

func TestGuardResetVerifiesAgain(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, nil)
	verifier := &fakeVerifier{res: api.Result{Success: true}}
	g := NewGuard(m, verifier, nil, "/login", nil)

	require.Equal(t, models.SessionUnauthenticated, g.Verify(context.Background()))

	require.NoError(t, m.Bootstrap("fresh"))
	g.Reset()
	assert.Equal(t, models.SessionVerifying, g.State())
	assert.Equal(t, models.SessionAuthenticated, g.Verify(context.Background()))
	assert.Equal(t, 1, verifier.calls)
}

// gatedVerifier holds every Verify call until release is closed.
type gatedVerifier struct {
	entered chan string
	release chan struct{}
	res     api.Result
}

func newGatedVerifier(res api.Result) *gatedVerifier {
	return &gatedVerifier{entered: make(chan string, 1), release: make(chan struct{}), res: res}
}

func (v *gatedVerifier) Verify(ctx context.Context, token string) api.Result {
	v.entered <- token
	<-v.release
	return v.res
}

func TestGuardLogoutDuringVerifyStaysLoggedOut(t *testing.T) {
	store := newMemStore()
	store.values[repository.KeyToken] = "tok"
	m := NewManager(store, nil)
	require.NoError(t, m.Load())

	verifier := newGatedVerifier(api.Result{Success: true, StatusCode: 200})
	nav := &recordingNav{}
	g := NewGuard(m, verifier, nav, "/login", nil)

	var mu sync.Mutex
	var changes []models.SessionState
	g.OnChange(func(s models.SessionState) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	})

	done := make(chan models.SessionState, 1)
	go func() { done <- g.Verify(context.Background()) }()
	require.Equal(t, "tok", <-verifier.entered)

	h := &LogoutHandler{Manager: m, Guard: g, Navigator: nav, HomeURL: "/"}
	h.Handle(LogoutEvent{Source: "relay"})
	close(verifier.release)

	assert.Equal(t, models.SessionUnauthenticated, <-done)
	assert.Equal(t, models.SessionUnauthenticated, g.State())
	assert.Empty(t, m.Token())
	mu.Lock()
	assert.Equal(t, []models.SessionState{models.SessionUnauthenticated}, changes)
	mu.Unlock()
	assert.Equal(t, []string{"/"}, nav.visited())
}

func TestGuardStaleRejectionKeepsNewToken(t *testing.T) {
	store := newMemStore()
	store.values[repository.KeyToken] = "old"
	m := NewManager(store, nil)
	require.NoError(t, m.Load())

	verifier := newGatedVerifier(api.Result{StatusCode: 401, Kind: apperrors.ErrUnauthorized})
	g := NewGuard(m, verifier, nil, "/login", nil)

	done := make(chan models.SessionState, 1)
	go func() { done <- g.Verify(context.Background()) }()
	require.Equal(t, "old", <-verifier.entered)

	require.NoError(t, m.Bootstrap("fresh"))
	close(verifier.release)

	assert.Equal(t, models.SessionVerifying, <-done)
	assert.Equal(t, "fresh", m.Token())
	assert.Equal(t, "fresh", store.values[repository.KeyToken])
}

func TestLogoutBusSingleHandler(t *testing.T) {
	bus := NewLogoutBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan LogoutEvent, 4)
	go func() {
		_ = bus.Run(ctx, func(ev LogoutEvent) { handled <- ev })
	}()

	require.Eventually(t, func() bool { return bus.running.Load() }, time.Second, time.Millisecond)
	assert.ErrorIs(t, bus.Run(ctx, func(LogoutEvent) {}), ErrHandlerRegistered)

	bus.Emit("api")
	select {
	case ev := <-handled:
		assert.Equal(t, "api", ev.Source)
	case <-time.After(time.Second):
		t.Fatal("logout event was not handled")
	}
}

func TestLogoutBusEmitDoesNotBlock(t *testing.T) {
	bus := NewLogoutBus()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Emit("api")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked without a handler")
	}
}

func TestLogoutHandlerClearsAndRedirects(t *testing.T) {
	store := newMemStore()
	store.values[repository.KeyToken] = "tok"
	store.values[repository.KeyUser] = `{"username":"asha"}`
	store.values["theme"] = "dark"
	m := NewManager(store, nil)
	require.NoError(t, m.Load())

	nav := &recordingNav{}
	g := NewGuard(m, &fakeVerifier{res: api.Result{Success: true}}, nav, "/login", nil)
	require.Equal(t, models.SessionAuthenticated, g.Verify(context.Background()))

	hookRan := false
	h := &LogoutHandler{
		Manager:   m,
		Guard:     g,
		Navigator: nav,
		HomeURL:   "https://app.example.com",
		Hooks:     []func(){func() { hookRan = true }},
	}
	h.Handle(LogoutEvent{Source: "api"})

	assert.Empty(t, m.Token())
	assert.Equal(t, map[string]string{"theme": "dark"}, store.values)
	assert.Equal(t, models.SessionUnauthenticated, g.State())
	assert.True(t, hookRan)
	assert.Equal(t, []string{"https://app.example.com"}, nav.visited())
}

func TestLogoutHandlerDefaultsHome(t *testing.T) {
	nav := &recordingNav{}
	h := &LogoutHandler{Manager: NewManager(newMemStore(), nil), Navigator: nav}

	h.Handle(LogoutEvent{Source: "test"})

	assert.Equal(t, []string{"/"}, nav.visited())
}

func TestRelayIgnoresOwnMessages(t *testing.T) {
	bus := NewLogoutBus()
	relay := NewLogoutRelay(nil, "dashboard:logout", bus, nil)

	relay.handle(`{"instance":"` + relay.InstanceID() + `"}`)
	relay.handle(`not json`)
	assert.Len(t, bus.events, 0)

	relay.handle(`{"instance":"someone-else"}`)
	require.Len(t, bus.events, 1)
	assert.Equal(t, "relay", (<-bus.events).Source)
}

func TestTerminalNavigatorRecordsTarget(t *testing.T) {
	var out safeBuffer
	nav := NewTerminalNavigator(&out, nil)

	nav.Redirect("https://app.example.com/login")

	assert.Equal(t, "https://app.example.com/login", nav.Last())
	assert.Contains(t, out.String(), "Open https://app.example.com/login")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
