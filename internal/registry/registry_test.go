package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/mcpgateway/internal/registry"
)

func newTool(server, name string) *registry.Tool {
	return &registry.Tool{
		ID:              server + "_" + name,
		Server:          server,
		Name:            name,
		Description:     "does " + name,
		Parameters:      map[string]any{"type": "object"},
		Tags:            map[string]struct{}{"demo": {}},
		EstimatedTokens: 50,
	}
}

func TestReplaceServerIsAtomicAndScoped(t *testing.T) {
	r := registry.New()
	r.ReplaceServer("puppeteer", []*registry.Tool{
		newTool("puppeteer", "screenshot"),
		newTool("puppeteer", "click"),
	})
	r.ReplaceServer("exa", []*registry.Tool{
		newTool("exa", "search"),
	})

	require.Equal(t, 3, r.Len())
	assert.Equal(t, map[string]int{"puppeteer": 2, "exa": 1}, r.CountByServer())

	// Replacing puppeteer must not disturb exa's tools.
	r.ReplaceServer("puppeteer", []*registry.Tool{newTool("puppeteer", "navigate")})

	puppet := r.ByServer("puppeteer")
	require.Len(t, puppet, 1)
	assert.Equal(t, "puppeteer_navigate", puppet[0].ID)

	exa := r.ByServer("exa")
	require.Len(t, exa, 1)
	assert.Equal(t, "exa_search", exa[0].ID)
}

func TestReplaceServerRejectsForeignTool(t *testing.T) {
	r := registry.New()
	defer func() {
		assert.NotNil(t, recover(), "expected a panic for a mismatched server tool")
	}()
	r.ReplaceServer("puppeteer", []*registry.Tool{newTool("exa", "search")})
}

func TestRemoveServer(t *testing.T) {
	r := registry.New()
	r.ReplaceServer("exa", []*registry.Tool{newTool("exa", "search")})
	r.RemoveServer("exa")

	assert.Equal(t, 0, r.Len())
	_, ok := r.Get("exa_search")
	assert.False(t, ok)
}

func TestRegisterThenRemoveIsIdentityOnTheRestOfTheRegistry(t *testing.T) {
	r := registry.New()
	r.ReplaceServer("exa", []*registry.Tool{newTool("exa", "search")})
	before := r.All()

	r.ReplaceServer("puppeteer", []*registry.Tool{newTool("puppeteer", "screenshot")})
	r.RemoveServer("puppeteer")

	after := r.All()
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}

func TestReadersNeverObserveAMixDuringConcurrentReplace(t *testing.T) {
	r := registry.New()
	r.ReplaceServer("srv", []*registry.Tool{newTool("srv", "a"), newTool("srv", "b")})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		gen := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			gen++
			name := "a"
			if gen%2 == 0 {
				name = "c"
			}
			r.ReplaceServer("srv", []*registry.Tool{newTool("srv", name)})
		}
	}()

	for i := 0; i < 200; i++ {
		tools := r.ByServer("srv")
		require.Len(t, tools, 1, "replace-per-server must always be atomic from a reader's view")
	}
	close(stop)
	wg.Wait()
}

func TestEmbeddingCacheEvictedOnReplace(t *testing.T) {
	r := registry.New()
	r.ReplaceServer("srv", []*registry.Tool{newTool("srv", "a")})

	tool, ok := r.Get("srv_a")
	require.True(t, ok)
	tool.SetEmbedding([]float32{1, 2, 3})
	assert.Equal(t, []float32{1, 2, 3}, tool.Embedding())

	r.ReplaceServer("srv", []*registry.Tool{newTool("srv", "a")})
	refreshed, ok := r.Get("srv_a")
	require.True(t, ok)
	assert.Nil(t, refreshed.Embedding(), "replacement must start with an empty embedding cache")
}
