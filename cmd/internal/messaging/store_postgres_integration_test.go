package messaging_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messagely/cmd/identity"
	"messagely/cmd/internal/messaging"
	"messagely/cmd/internal/pgtest"
)

// Integration tests are opt-in and require MESSAGELY_DATABASE_URL.

func newPostgresStores(t *testing.T, users ...string) *messaging.PostgresStore {
	t.Helper()

	pool := pgtest.Pool(t)
	schema := pgtest.Schema(t, pool)

	ids, err := identity.NewPostgresStore(pool, identity.WithSchema(schema))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, u := range users {
		_, err := ids.CreateUser(ctx, identity.CreateUserInput{Username: u, PasswordHash: "h", FirstName: u, LastName: "x", Phone: "1"})
		require.NoError(t, err)
	}

	st, err := messaging.NewPostgresStore(pool, messaging.WithSchema(schema))
	require.NoError(t, err)
	return st
}

func TestPostgresStore_CreateGetList(t *testing.T) {
	st := newPostgresStores(t, "alice", "bob")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sent := time.Now().UTC().Truncate(time.Microsecond)
	m1, err := st.Create(ctx, messaging.CreateInput{FromUsername: "alice", ToUsername: "bob", Body: "one", SentAt: sent})
	require.NoError(t, err)
	m2, err := st.Create(ctx, messaging.CreateInput{FromUsername: "bob", ToUsername: "alice", Body: "two", SentAt: sent})
	require.NoError(t, err)
	assert.Greater(t, m2.ID, m1.ID)

	got, err := st.Get(ctx, m1.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", got.Body)
	assert.True(t, sent.Equal(got.SentAt))
	assert.Nil(t, got.ReadAt)

	from, err := st.ListFrom(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, m1.ID, from[0].ID)

	to, err := st.ListTo(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, m2.ID, to[0].ID)

	_, err = st.Get(ctx, m2.ID+100)
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}

func TestPostgresStore_UnknownRecipient(t *testing.T) {
	st := newPostgresStores(t, "alice")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := st.Create(ctx, messaging.CreateInput{FromUsername: "alice", ToUsername: "ghost", Body: "hi"})
	assert.ErrorIs(t, err, messaging.ErrRecipientNotFound)
}

func TestPostgresStore_MarkReadOnce(t *testing.T) {
	st := newPostgresStores(t, "alice", "bob")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	m, err := st.Create(ctx, messaging.CreateInput{FromUsername: "alice", ToUsername: "bob", Body: "race"})
	require.NoError(t, err)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		already int
		stamps  []time.Time
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := st.MarkRead(ctx, m.ID, time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
				stamps = append(stamps, *got.ReadAt)
			case errors.Is(err, messaging.ErrAlreadyRead):
				already++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, already)

	got, err := st.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)
	require.Len(t, stamps, 1)
	assert.True(t, stamps[0].Equal(*got.ReadAt))

	_, err = st.MarkRead(ctx, m.ID+100, time.Now())
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}
