package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/loom/pkg/adapters/memory"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunSnapshotStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	current := map[string]any{"a": 1.0}
	require.NoError(t, store.Save(ctx, "s", domain.Snapshot{CurrentState: current}))
	current["a"] = 2.0

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, loaded.CurrentState)

	loaded.CurrentState.(map[string]any)["a"] = 3.0
	again, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, again.CurrentState)
}
