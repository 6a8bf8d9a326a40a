package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/chronicle/internal/core/errs"
)

func TestDecodeJSON(t *testing.T) {
	type doc struct {
		Name string `json:"name"`
	}

	got, err := DecodeJSON[doc]([]byte(`{"name":"Alice"}`))
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	_, err = DecodeJSON[doc](nil)
	assert.Error(t, err)

	_, err = DecodeJSON[doc]([]byte(`{"name":`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal JSON")
}

func TestNormalizeJSON(t *testing.T) {
	got, err := NormalizeJSON(map[string]int{"age": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"age": float64(3)}, got)

	got, err = NormalizeJSON(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = NormalizeJSON(make(chan int))
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestValidate(t *testing.T) {
	type input struct {
		Kind     string `validate:"oneof=a b"`
		Strength int    `validate:"min=1,max=10"`
	}

	assert.NoError(t, Validate(input{Kind: "a", Strength: 10}))

	err := Validate(input{Kind: "c", Strength: 5})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Contains(t, err.Error(), "Kind")

	err = Validate(input{Kind: "b", Strength: 11})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Contains(t, err.Error(), "Strength")
}
