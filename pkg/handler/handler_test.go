package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elev8tion/agm-platform-sub001/pkg/core"
	"github.com/elev8tion/agm-platform-sub001/pkg/progress"
)

func noop(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("seo_writer", Func(noop)))

	h, ok := r.Get("seo_writer")
	assert.True(t, ok)
	assert.NotNil(t, h)

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("seo_writer", Func(noop)))
	assert.Error(t, r.Register("seo_writer", Func(noop)))
}

func TestRegistry_ValidatesKindName(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register("", Func(noop)), core.ErrInvalidKindName)
	assert.ErrorIs(t, r.Register("1bad", Func(noop)), core.ErrInvalidKindName)
	assert.Error(t, r.Register("ok_kind", nil))
}

func TestRegistry_Kinds(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("email_marketer", Func(noop)))
	require.NoError(t, r.Register("seo_writer", Func(noop)))

	assert.Equal(t, []string{"email_marketer", "seo_writer"}, r.Kinds())
}

func TestFunc_Execute(t *testing.T) {
	called := false
	h := Func(func(ctx context.Context, params map[string]any, tracker *progress.Tracker) (map[string]any, error) {
		called = true
		return map[string]any{"echo": params["msg"]}, nil
	})

	result, err := h.Execute(context.Background(), map[string]any{"msg": "hi"}, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "hi", result["echo"])
}
