package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/models"
)

func noopHandler() Handler {
	return HandlerFunc(func(context.Context, *models.Node, *models.ExecutionContext) (*Result, error) {
		return Success(nil), nil
	})
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(models.NodeKindTrigger, noopHandler()))

	h, err := r.Get(models.NodeKindTrigger)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.True(t, r.Has(models.NodeKindTrigger))
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(models.NodeKindTimer)
	assert.ErrorIs(t, err, models.ErrHandlerNotFound)
	assert.False(t, r.Has(models.NodeKindTimer))
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", noopHandler()))
	assert.Error(t, r.Register(models.NodeKindTrigger, nil))
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(models.NodeKindAction, noopHandler()))

	replaced := HandlerFunc(func(context.Context, *models.Node, *models.ExecutionContext) (*Result, error) {
		return Errorf("replaced"), nil
	})
	require.NoError(t, r.Register(models.NodeKindAction, replaced))

	h, err := r.Get(models.NodeKindAction)
	require.NoError(t, err)
	res, err := h.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultError, res.Kind)
}
