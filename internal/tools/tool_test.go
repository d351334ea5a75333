package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sarierrors "github.com/sari-dev/sari/internal/errors"
)

func TestRegistry_RegisterGetList(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Name: "b", Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return "b", nil }})
	r.Register(&Tool{Name: "a", Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return "a", nil }})

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)
}

func TestRegistry_RegisterSameNameLastWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Name: "x", Description: "first"})
	r.Register(&Tool{Name: "x", Description: "second"})

	got, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, "second", got.Description)
}

func TestRegistry_InvokeUnknownToolIsInvalidArgs(t *testing.T) {
	r := NewRegistry()
	_, err := r.Invoke(context.Background(), "nope", nil)
	assert.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.InvalidArgs, code)
}

func TestRegistry_InvokeDispatchesToExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Name: "echo", Execute: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return args["msg"], nil
	}})

	out, err := r.Invoke(context.Background(), "echo", map[string]interface{}{"msg": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestIntArg_TakesJSONFloat64(t *testing.T) {
	assert.Equal(t, 5, intArg(map[string]interface{}{"n": float64(5)}, "n", 0))
	assert.Equal(t, 9, intArg(map[string]interface{}{}, "n", 9))
}

func TestStringSliceArg_DecodesJSONArray(t *testing.T) {
	got := stringSliceArg(map[string]interface{}{"tags": []interface{}{"a", "b"}}, "tags")
	assert.Equal(t, []string{"a", "b"}, got)
}
