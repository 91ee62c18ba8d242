package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeSyncAdapter(id string, ops ...Operation) *Adapter {
	supported := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		supported[op] = true
	}
	return &Adapter{
		ID:    id,
		Async: func(Operation) bool { return false },
		Invoke: func(ctx context.Context, req Request) (*SyncResult, *AsyncHandle, error) {
			if !supported[req.Operation] {
				return nil, nil, ErrProviderCall
			}
			return &SyncResult{Artifacts: [][]byte{[]byte("out")}, ContentType: "image/png"}, nil, nil
		},
	}
}

func TestRegistry_ResolveAllowedProvider(t *testing.T) {
	reg := NewRegistry(
		[]*Adapter{fakeSyncAdapter("provider_a", OpTextToImage)},
		map[Operation][]string{OpTextToImage: {"provider_a"}},
	)

	a, err := reg.Resolve(OpTextToImage, "provider_a")
	require.NoError(t, err)
	assert.Equal(t, "provider_a", a.ID)
}

func TestRegistry_RejectsUnknownProvider(t *testing.T) {
	reg := NewRegistry(nil, map[Operation][]string{OpTextToImage: {"provider_a"}})

	_, err := reg.Resolve(OpTextToImage, "provider_z")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistry_RejectsProviderNotAllowedForOperation(t *testing.T) {
	reg := NewRegistry(
		[]*Adapter{fakeSyncAdapter("provider_a", OpTextToImage)},
		map[Operation][]string{
			OpTextToImage: {"provider_a"},
			OpUpscale:     {"provider_c"},
		},
	)

	_, err := reg.Resolve(OpUpscale, "provider_a")
	assert.ErrorIs(t, err, ErrProviderNotAllowed)
}

func TestRegistry_DefaultProviderPicksFirstAllowedInPreferenceOrder(t *testing.T) {
	reg := NewRegistry(nil, map[Operation][]string{
		OpTextToImage: {"provider_a", "provider_b"},
	})

	id, err := reg.DefaultProvider(OpTextToImage, []string{"provider_b", "provider_a"})
	require.NoError(t, err)
	assert.Equal(t, "provider_b", id)
}

func TestRegistry_DefaultProviderErrorsWhenNoneConfigured(t *testing.T) {
	reg := NewRegistry(nil, map[Operation][]string{})

	_, err := reg.DefaultProvider(OpTextToImage, []string{"provider_a"})
	assert.ErrorIs(t, err, ErrProviderNotAllowed)
}

func TestAllowedProviders_NeverExposesBareVendorNames(t *testing.T) {
	for op, ids := range AllowedProviders {
		for _, id := range ids {
			assert.Regexp(t, `^provider_[a-f]$`, id, "operation %s", op)
		}
	}
}
