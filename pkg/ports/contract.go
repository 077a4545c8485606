package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract. newStore must return an empty store.
func RunSessionStoreContract(t *testing.T, newStore func(t *testing.T) SessionStore) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Create and Load", func(t *testing.T) {
		store := newStore(t)
		s := domain.NewSession("call-1", "+911234", now)

		require.NoError(t, store.Create(ctx, s))

		loaded, err := store.Load(ctx, "call-1")
		require.NoError(t, err)
		assert.Equal(t, "+911234", loaded.Caller)
		assert.Equal(t, domain.RootMenu, loaded.CurrentMenu)
		assert.Equal(t, []string{domain.RootMenu}, loaded.Path)
		assert.True(t, now.Equal(loaded.CreatedAt))
	})

	t.Run("Create Duplicate", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, domain.NewSession("dup", "a", now)))
		err := store.Create(ctx, domain.NewSession("dup", "b", now))
		assert.ErrorIs(t, err, domain.ErrSessionExists)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Save", func(t *testing.T) {
		store := newStore(t)
		s := domain.NewSession("call-save", "+91", now)
		require.NoError(t, store.Create(ctx, s))

		s.CurrentMenu = "booking"
		s.Path = append(s.Path, "booking")
		s.Inputs = append(s.Inputs, domain.Input{Token: "1", At: now})
		require.NoError(t, store.Save(ctx, s))

		loaded, err := store.Load(ctx, "call-save")
		require.NoError(t, err)
		assert.Equal(t, "booking", loaded.CurrentMenu)
		assert.Equal(t, []string{domain.RootMenu, "booking"}, loaded.Path)
		require.Len(t, loaded.Inputs, 1)
		assert.Equal(t, "1", loaded.Inputs[0].Token)

		err = store.Save(ctx, domain.NewSession("never-created", "", now))
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Loaded Copies Are Isolated", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Create(ctx, domain.NewSession("iso", "+91", now)))

		loaded, err := store.Load(ctx, "iso")
		require.NoError(t, err)
		loaded.Path[0] = "tampered"
		loaded.CurrentMenu = "tampered"

		again, err := store.Load(ctx, "iso")
		require.NoError(t, err)
		assert.Equal(t, domain.RootMenu, again.CurrentMenu)
		assert.Equal(t, domain.RootMenu, again.Path[0])
	})

	t.Run("Terminate", func(t *testing.T) {
		store := newStore(t)
		s := domain.NewSession("call-end", "+91", now)
		require.NoError(t, store.Create(ctx, s))

		end := now.Add(2 * time.Minute)
		entry, err := store.Terminate(ctx, "call-end", domain.ReasonEnded, end)
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonEnded, entry.Reason)
		assert.True(t, end.Equal(entry.EndedAt))
		require.NotNil(t, entry.Session.EndedAt)

		_, err = store.Load(ctx, "call-end")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "terminated session must leave the live set")

		_, err = store.Terminate(ctx, "call-end", domain.ReasonEnded, end)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "terminate is not repeatable")

		history, err := store.History(ctx, 0)
		require.NoError(t, err)
		matches := 0
		for _, h := range history {
			if h.Session.CallID == "call-end" {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "terminated session must appear exactly once in history")
	})

	t.Run("Terminate Non-Existent", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Terminate(ctx, "ghost", domain.ReasonEnded, now)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Count List History", func(t *testing.T) {
		store := newStore(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, store.Create(ctx, domain.NewSession(fmt.Sprintf("c-%d", i), "+91", now)))
		}
		for i := 0; i < 3; i++ {
			_, err := store.Terminate(ctx, fmt.Sprintf("c-%d", i), domain.ReasonTransferred, now.Add(time.Duration(i)*time.Second))
			require.NoError(t, err)
		}

		counts, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Counts{Live: 2, History: 3}, counts)

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c-3", "c-4"}, ids)

		last, err := store.History(ctx, 2)
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.Equal(t, "c-1", last[0].Session.CallID)
		assert.Equal(t, "c-2", last[1].Session.CallID)
	})

	t.Run("Concurrent Sessions", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("par-%d", i)
				assert.NoError(t, store.Create(ctx, domain.NewSession(id, "+91", now)))
				_, err := store.Terminate(ctx, id, domain.ReasonEnded, now)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		counts, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.Counts{Live: 0, History: 20}, counts)
	})
}
