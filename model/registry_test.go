package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve_FirstMatchWins(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(`gpt-4.*`, func(name string) (Model, error) {
		return NewMockModel("openai:" + name), nil
	}))
	require.NoError(t, r.Register(`.*`, func(name string) (Model, error) {
		return NewMockModel("catchall:" + name), nil
	}))

	m, err := r.Resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", m.Info().Name)

	m, err = r.Resolve("claude-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "catchall:claude-sonnet", m.Info().Name)
}

func TestRegistry_Resolve_PatternIsAnchored(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(`gpt-4o`, func(name string) (Model, error) {
		return NewMockModel(name), nil
	}))

	_, err := r.Resolve("gpt-4o-mini")
	assert.ErrorIs(t, err, ErrNoModel, "partial matches must not resolve")
}

func TestRegistry_Resolve_Default(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("anything")
	assert.ErrorIs(t, err, ErrNoModel)

	r.SetDefault(func(name string) (Model, error) {
		return NewMockModel("default:" + name), nil
	})

	m, err := r.Resolve("anything")
	require.NoError(t, err)
	assert.Equal(t, "default:anything", m.Info().Name)
}

func TestRegistry_Register_InvalidPattern(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(`gpt-(4`, func(name string) (Model, error) {
		return NewMockModel(name), nil
	}))
}
