package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"messagely/cmd/identity"
	"messagely/cmd/security/password"
)

type countingLookup struct {
	mu    sync.Mutex
	inner identity.ProfileLookup
	calls map[string]int
}

func (c *countingLookup) GetProfile(ctx context.Context, username string) (identity.Profile, error) {
	c.mu.Lock()
	c.calls[username]++
	c.mu.Unlock()
	return c.inner.GetProfile(ctx, username)
}

func (c *countingLookup) count(username string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[username]
}

func (c *countingLookup) reset() {
	c.mu.Lock()
	c.calls = make(map[string]int)
	c.mu.Unlock()
}

type recordedEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordedEvents) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordedEvents) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

type recordedDecisions struct {
	mu      sync.Mutex
	allowed map[string]int
	denied  map[string]int
}

func (r *recordedDecisions) RecordDecision(action string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		r.allowed[action]++
	} else {
		r.denied[action]++
	}
}

type fixture struct {
	auth      *identity.Authenticator
	users     *identity.MemoryStore
	lookup    *countingLookup
	store     *MemoryStore
	svc       *Service
	events    *recordedEvents
	decisions *recordedDecisions
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pw := password.DefaultConfig()
	pw.WorkFactor = bcrypt.MinCost

	users := identity.NewMemoryStore()
	auth, err := identity.NewAuthenticator(users, pw)
	require.NoError(t, err)

	lookup := &countingLookup{inner: users, calls: make(map[string]int)}
	resolver, err := identity.NewResolver(lookup)
	require.NoError(t, err)

	f := &fixture{
		auth:      auth,
		users:     users,
		lookup:    lookup,
		store:     NewMemoryStore(users),
		events:    &recordedEvents{},
		decisions: &recordedDecisions{allowed: map[string]int{}, denied: map[string]int{}},
		clock:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc, err = NewService(f.store, resolver,
		WithNotifier(f.events),
		WithDecisionRecorder(f.decisions),
		WithClock(func() time.Time {
			f.clock = f.clock.Add(time.Second)
			return f.clock
		}),
	)
	require.NoError(t, err)
	return f
}

func (f *fixture) register(t *testing.T, username, pw string) {
	t.Helper()
	_, err := f.auth.Register(context.Background(), identity.RegisterInput{
		Username:  username,
		Password:  pw,
		FirstName: strings.ToUpper(username[:1]) + username[1:],
		LastName:  "Test",
		Phone:     "555-" + username,
	})
	require.NoError(t, err)
}

func TestScenario_AliceWritesBob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice", "secret1")
	f.register(t, "bob", "secret2")

	m, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "alice", m.FromUsername)
	assert.Equal(t, "bob", m.ToUsername)

	got, err := f.svc.Fetch(ctx, m.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, got.FromUser)
	assert.Equal(t, identity.Profile{Username: "alice", FirstName: "Alice", LastName: "Test", Phone: "555-alice"}, *got.FromUser)
	assert.Nil(t, got.ReadAt)

	_, err = f.svc.MarkRead(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, ErrForbidden)

	read, err := f.svc.MarkRead(ctx, m.ID, "bob")
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	first := *read.ReadAt

	_, err = f.svc.MarkRead(ctx, m.ID, "bob")
	assert.ErrorIs(t, err, ErrAlreadyRead)

	after, err := f.svc.Fetch(ctx, m.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, after.ReadAt)
	assert.Equal(t, first, *after.ReadAt)

	evs := f.events.all()
	require.Len(t, evs, 2)
	assert.Equal(t, EventMessageNew, evs[0].Type)
	assert.Equal(t, "bob", evs[0].Recipient)
	assert.Equal(t, EventMessageRead, evs[1].Type)
	assert.Equal(t, "alice", evs[1].Recipient)
}

func TestAccess_SymmetryAndAsymmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "carol"} {
		f.register(t, u, "password-"+u)
	}

	m, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: "private"})
	require.NoError(t, err)

	_, err = f.svc.Fetch(ctx, m.ID, "alice")
	assert.NoError(t, err)
	_, err = f.svc.Fetch(ctx, m.ID, "bob")
	assert.NoError(t, err)
	_, err = f.svc.Fetch(ctx, m.ID, "carol")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotContains(t, err.Error(), "private")

	_, err = f.svc.MarkRead(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.MarkRead(ctx, m.ID, "carol")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.MarkRead(ctx, m.ID, "bob")
	assert.NoError(t, err)

	assert.Equal(t, 2, f.decisions.allowed[ActionFetch])
	assert.Equal(t, 1, f.decisions.denied[ActionFetch])
	assert.Equal(t, 1, f.decisions.allowed[ActionMarkRead])
	assert.Equal(t, 2, f.decisions.denied[ActionMarkRead])
}

func TestFetch_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Fetch(context.Background(), 999, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.MarkRead(context.Background(), 999, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetch_SelfAddressedCostsOneLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "secret1")

	m, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "alice", Body: "note to self"})
	require.NoError(t, err)

	f.lookup.reset()
	got, err := f.svc.Fetch(ctx, m.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.FromUser.Username)
	assert.Equal(t, "alice", got.ToUser.Username)
	assert.Equal(t, 1, f.lookup.count("alice"))
}

func TestMarkRead_ConcurrentExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "secret1")
	f.register(t, "bob", "secret2")

	m, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: "race"})
	require.NoError(t, err)

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		already int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.MarkRead(ctx, m.ID, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrAlreadyRead):
				already++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, already)
}

func TestListTo_DeduplicatesCounterpartLookups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "secret1")
	f.register(t, "bob", "secret2")

	for i := 0; i < 10; i++ {
		_, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: "msg"})
		require.NoError(t, err)
	}

	f.lookup.reset()
	got, err := f.svc.ListTo(ctx, "bob", "bob")
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, 1, f.lookup.count("alice"))

	for i, em := range got {
		require.NotNil(t, em.FromUser)
		assert.Nil(t, em.ToUser)
		assert.Equal(t, "alice", em.FromUser.Username)
		if i > 0 {
			assert.Greater(t, em.ID, got[i-1].ID)
		}
	}
}

func TestListFrom_ExpandsRecipients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, u := range []string{"alice", "bob", "carol"} {
		f.register(t, u, "password-"+u)
	}

	for _, to := range []string{"bob", "carol", "bob"} {
		_, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: to, Body: "hello " + to})
		require.NoError(t, err)
	}

	f.lookup.reset()
	got, err := f.svc.ListFrom(ctx, "alice", "alice")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "bob", got[0].ToUser.Username)
	assert.Equal(t, "carol", got[1].ToUser.Username)
	assert.Nil(t, got[0].FromUser)
	assert.Equal(t, 1, f.lookup.count("bob"))
	assert.Equal(t, 1, f.lookup.count("carol"))
}

func TestMailbox_OtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ListTo(ctx, "carol", "bob")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ListFrom(ctx, "carol", "bob")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 2, f.decisions.denied[ActionMailbox])
}

func TestCompose_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "secret1")
	f.register(t, "bob", "secret2")

	_, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: strings.Repeat("x", MaxBodyLen+1)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "", Body: "hi"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: strings.Repeat("é", MaxBodyLen)})
	assert.NoError(t, err)
}

func TestCompose_RecipientNotFound(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "secret1")

	_, err := f.svc.Compose(context.Background(), "alice", ComposeInput{ToUsername: "ghost", Body: "hi"})
	assert.ErrorIs(t, err, ErrRecipientNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.events.all())
}

func TestNoHashLeakage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "secret1")
	f.register(t, "bob", "secret2")

	creds, err := f.users.GetCredentials(ctx, "alice")
	require.NoError(t, err)
	hash := creds.PasswordHash

	m, err := f.svc.Compose(ctx, "alice", ComposeInput{ToUsername: "bob", Body: "hi"})
	require.NoError(t, err)

	fetched, err := f.svc.Fetch(ctx, m.ID, "bob")
	require.NoError(t, err)
	from, err := f.svc.ListFrom(ctx, "alice", "alice")
	require.NoError(t, err)
	to, err := f.svc.ListTo(ctx, "bob", "bob")
	require.NoError(t, err)
	_, forbidden := f.svc.Fetch(ctx, m.ID, "mallory")

	require.Error(t, forbidden)

	for _, out := range []any{fetched, from, to, forbidden.Error()} {
		b, err := json.Marshal(out)
		require.NoError(t, err)
		assert.NotContains(t, string(b), hash)
		assert.NotContains(t, string(b), "secret1")
	}
}
