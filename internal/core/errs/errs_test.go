package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassesSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("loading scene: %w", NotFound("scene %q", "s1"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), `scene "s1"`)

	assert.True(t, errors.Is(Validation("strength %d", 11), ErrValidation))
	assert.True(t, errors.Is(InvalidArgument("t is NaN"), ErrInvalidArgument))
}
