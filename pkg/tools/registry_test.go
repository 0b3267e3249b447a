package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name string
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "fake " + f.name }
func (f *fakeTool) Schema() json.RawMessage { return querySchema }
func (f *fakeTool) Run(ctx context.Context, args json.RawMessage) (string, error) {
	return "ok", nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))

	got, ok := r.Get("alpha")
	require.True(t, ok)
	require.Equal(t, "alpha", got.Name())

	_, ok = r.Get("beta")
	require.False(t, ok)
}

func TestRegistry_RejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))
	require.Error(t, r.Register(&fakeTool{name: "alpha"}))
	require.Error(t, r.Register(&fakeTool{name: "  "}))
	require.Error(t, r.Register(nil))
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "zeta"}))
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))

	ts := r.List()
	require.Len(t, ts, 2)
	require.Equal(t, "alpha", ts[0].Name())
	require.Equal(t, "zeta", ts[1].Name())
}

func TestRegistry_Definitions(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "web_search"}))
	require.NoError(t, r.Register(&fakeTool{name: "arxiv"}))

	all := r.Definitions(nil)
	require.Len(t, all, 2)
	require.Equal(t, "arxiv", all[0].Function.Name)
	require.Equal(t, "web_search", all[1].Function.Name)

	filtered := r.Definitions([]string{"web_search"})
	require.Len(t, filtered, 1)
	require.Equal(t, "web_search", filtered[0].Function.Name)
}
