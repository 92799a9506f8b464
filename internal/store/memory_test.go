package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/store"
)

func TestMemory_EnsureContainer(t *testing.T) {
	t.Parallel()

	t.Run("creates_container", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()

		err := m.EnsureContainer(context.Background(), "gateway-key-demo", map[string]string{"app": "demo"})
		require.NoError(t, err)
	})

	t.Run("second_create_surfaces_already_exists", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()
		require.NoError(t, m.EnsureContainer(context.Background(), "gateway-key-demo", nil))

		err := m.EnsureContainer(context.Background(), "gateway-key-demo", nil)
		require.Error(t, err)
		assert.True(t, kgerrors.IsAlreadyExists(err))
	})
}

func TestMemory_Versions(t *testing.T) {
	t.Parallel()

	t.Run("append_returns_incrementing_ordinals", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()
		ctx := context.Background()
		require.NoError(t, m.EnsureContainer(ctx, "gateway-key-demo", nil))

		v1, err := m.AppendVersion(ctx, "gateway-key-demo", []byte("one"))
		require.NoError(t, err)
		v2, err := m.AppendVersion(ctx, "gateway-key-demo", []byte("two"))
		require.NoError(t, err)

		assert.Equal(t, "1", v1)
		assert.Equal(t, "2", v2)
	})

	t.Run("read_latest_returns_newest_payload", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()
		ctx := context.Background()
		require.NoError(t, m.EnsureContainer(ctx, "gateway-key-demo", nil))
		_, err := m.AppendVersion(ctx, "gateway-key-demo", []byte("old"))
		require.NoError(t, err)
		_, err = m.AppendVersion(ctx, "gateway-key-demo", []byte("new"))
		require.NoError(t, err)

		payload, ordinal, err := m.ReadLatest(ctx, "gateway-key-demo")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), payload)
		assert.Equal(t, "2", ordinal)
	})

	t.Run("read_latest_without_versions_is_not_found", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()
		ctx := context.Background()
		require.NoError(t, m.EnsureContainer(ctx, "gateway-key-demo", nil))

		_, _, err := m.ReadLatest(ctx, "gateway-key-demo")
		require.Error(t, err)
		assert.True(t, kgerrors.IsNotFound(err))
	})

	t.Run("append_to_missing_container_is_not_found", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()

		_, err := m.AppendVersion(context.Background(), "gateway-key-ghost", []byte("x"))
		require.Error(t, err)
		assert.True(t, kgerrors.IsNotFound(err))
	})

	t.Run("list_versions_oldest_first", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()
		ctx := context.Background()
		require.NoError(t, m.EnsureContainer(ctx, "gateway-key-demo", nil))
		for _, payload := range []string{"a", "b", "c"} {
			_, err := m.AppendVersion(ctx, "gateway-key-demo", []byte(payload))
			require.NoError(t, err)
		}

		versions, err := m.ListVersions(ctx, "gateway-key-demo")
		require.NoError(t, err)
		require.Len(t, versions, 3)
		assert.Equal(t, "1", versions[0].Ordinal)
		assert.Equal(t, "3", versions[2].Ordinal)
		assert.Equal(t, "ENABLED", versions[0].State)
	})
}

func TestMemory_ListContainers(t *testing.T) {
	t.Parallel()

	t.Run("label_filter_scopes_results", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()
		ctx := context.Background()
		require.NoError(t, m.EnsureContainer(ctx, "gateway-key-a", map[string]string{"type": "gateway-key"}))
		require.NoError(t, m.EnsureContainer(ctx, "gateway-key-b", map[string]string{"type": "gateway-key"}))
		require.NoError(t, m.EnsureContainer(ctx, "unrelated", map[string]string{"type": "other"}))

		containers, err := m.ListContainers(ctx, "labels.type=gateway-key")
		require.NoError(t, err)
		require.Len(t, containers, 2)

		names := []string{containers[0].Name, containers[1].Name}
		assert.ElementsMatch(t, []string{"gateway-key-a", "gateway-key-b"}, names)
	})

	t.Run("empty_filter_matches_everything", func(t *testing.T) {
		t.Parallel()
		m := store.NewMemory()
		ctx := context.Background()
		require.NoError(t, m.EnsureContainer(ctx, "a", nil))
		require.NoError(t, m.EnsureContainer(ctx, "b", nil))

		containers, err := m.ListContainers(ctx, "")
		require.NoError(t, err)
		assert.Len(t, containers, 2)
	})
}
