package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("placing order: %w", Conflict("order %s cannot be cancelled", "ABCD1234"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))

	msg, ok := Message(err)
	assert.True(t, ok)
	assert.Equal(t, "order ABCD1234 cannot be cancelled", msg)
}

func TestDetails(t *testing.T) {
	err := Invalid("Some items are unavailable").WithDetails(map[string]int{"count": 2})
	assert.Equal(t, map[string]int{"count": 2}, Details(err))
	assert.Nil(t, Details(errors.New("plain")))
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, "product not found", NotFound("product").Error())
	_, ok := Message(errors.New("plain"))
	assert.False(t, ok)
}
