package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kgerrors "github.com/systmms/keygate/internal/errors"
	"github.com/systmms/keygate/internal/logging"
	"github.com/systmms/keygate/internal/store"
	"github.com/systmms/keygate/tests/fakes"
)

func newGCPUnderTest(t *testing.T) (*store.GCP, *fakes.FakeSecretManager) {
	t.Helper()
	fake := fakes.NewFakeSecretManager("test-project")
	backend := store.NewGCPWithAPI(fake, "test-project", logging.New(false))
	return backend, fake
}

func TestGCP_EnsureContainer(t *testing.T) {
	t.Parallel()

	t.Run("creates_secret_with_labels", func(t *testing.T) {
		t.Parallel()
		backend, fake := newGCPUnderTest(t)

		err := backend.EnsureContainer(context.Background(), "gateway-key-demo", map[string]string{
			"type": "gateway-key",
			"app":  "demo",
		})
		require.NoError(t, err)
		assert.Equal(t, "gateway-key", fake.Secrets["gateway-key-demo"]["type"])
		assert.Equal(t, "demo", fake.Secrets["gateway-key-demo"]["app"])
	})

	t.Run("existing_secret_surfaces_already_exists", func(t *testing.T) {
		t.Parallel()
		backend, _ := newGCPUnderTest(t)
		ctx := context.Background()
		require.NoError(t, backend.EnsureContainer(ctx, "gateway-key-demo", nil))

		err := backend.EnsureContainer(ctx, "gateway-key-demo", nil)
		require.Error(t, err)
		assert.True(t, kgerrors.IsAlreadyExists(err))
	})

	t.Run("permission_denied_is_fatal", func(t *testing.T) {
		t.Parallel()
		backend, fake := newGCPUnderTest(t)
		fake.FailWith("CreateSecret", fakes.PermissionDeniedError("caller lacks secretmanager.secrets.create"))

		err := backend.EnsureContainer(context.Background(), "gateway-key-demo", nil)
		require.Error(t, err)
		assert.True(t, kgerrors.IsPermission(err))
		assert.False(t, kgerrors.IsTransient(err))
	})
}

func TestGCP_Versions(t *testing.T) {
	t.Parallel()

	t.Run("append_then_read_latest_round_trips", func(t *testing.T) {
		t.Parallel()
		backend, _ := newGCPUnderTest(t)
		ctx := context.Background()
		require.NoError(t, backend.EnsureContainer(ctx, "gateway-key-demo", nil))

		v1, err := backend.AppendVersion(ctx, "gateway-key-demo", []byte("first"))
		require.NoError(t, err)
		assert.Equal(t, "1", v1)

		v2, err := backend.AppendVersion(ctx, "gateway-key-demo", []byte("second"))
		require.NoError(t, err)
		assert.Equal(t, "2", v2)

		payload, ordinal, err := backend.ReadLatest(ctx, "gateway-key-demo")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), payload)
		assert.Equal(t, "2", ordinal)
	})

	t.Run("read_latest_of_missing_secret_is_not_found", func(t *testing.T) {
		t.Parallel()
		backend, _ := newGCPUnderTest(t)

		_, _, err := backend.ReadLatest(context.Background(), "gateway-key-ghost")
		require.Error(t, err)
		assert.True(t, kgerrors.IsNotFound(err))
	})

	t.Run("unavailable_is_transient", func(t *testing.T) {
		t.Parallel()
		backend, fake := newGCPUnderTest(t)
		fake.FailWith("AccessSecretVersion", fakes.UnavailableError("service unavailable"))

		_, _, err := backend.ReadLatest(context.Background(), "gateway-key-demo")
		require.Error(t, err)
		assert.True(t, kgerrors.IsTransient(err))
	})

	t.Run("list_versions_reports_history", func(t *testing.T) {
		t.Parallel()
		backend, _ := newGCPUnderTest(t)
		ctx := context.Background()
		require.NoError(t, backend.EnsureContainer(ctx, "gateway-key-demo", nil))
		for _, payload := range []string{"a", "b"} {
			_, err := backend.AppendVersion(ctx, "gateway-key-demo", []byte(payload))
			require.NoError(t, err)
		}

		versions, err := backend.ListVersions(ctx, "gateway-key-demo")
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, "1", versions[0].Ordinal)
		assert.Equal(t, "2", versions[1].Ordinal)
		assert.Equal(t, "ENABLED", versions[0].State)
		assert.False(t, versions[0].CreateTime.IsZero())
	})
}

func TestGCP_ListContainers(t *testing.T) {
	t.Parallel()

	t.Run("filter_scopes_to_labeled_secrets", func(t *testing.T) {
		t.Parallel()
		backend, _ := newGCPUnderTest(t)
		ctx := context.Background()
		require.NoError(t, backend.EnsureContainer(ctx, "gateway-key-a", map[string]string{"type": "gateway-key", "app": "a"}))
		require.NoError(t, backend.EnsureContainer(ctx, "gateway-key-b", map[string]string{"type": "gateway-key", "app": "b"}))
		require.NoError(t, backend.EnsureContainer(ctx, "other-secret", map[string]string{"type": "other"}))

		containers, err := backend.ListContainers(ctx, "labels.type=gateway-key")
		require.NoError(t, err)
		require.Len(t, containers, 2)
		assert.Equal(t, "gateway-key-a", containers[0].Name)
		assert.Equal(t, "a", containers[0].Labels["app"])
		assert.Equal(t, "gateway-key-b", containers[1].Name)
	})

	t.Run("list_error_is_classified", func(t *testing.T) {
		t.Parallel()
		backend, fake := newGCPUnderTest(t)
		fake.FailWith("ListSecrets", fakes.UnavailableError("try again"))

		_, err := backend.ListContainers(context.Background(), "labels.type=gateway-key")
		require.Error(t, err)
		assert.True(t, kgerrors.IsTransient(err))
	})
}
