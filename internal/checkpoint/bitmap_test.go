package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmapSetAndIsSet(t *testing.T) {
	b := NewBitmap(200)
	assert.False(t, b.IsSet(0))
	assert.False(t, b.IsSet(199))

	b.Set(0)
	b.Set(63)
	b.Set(64)
	b.Set(199)

	assert.True(t, b.IsSet(0))
	assert.True(t, b.IsSet(63))
	assert.True(t, b.IsSet(64))
	assert.True(t, b.IsSet(199))
	assert.False(t, b.IsSet(1))
}

func TestBitmapSetIsIdempotent(t *testing.T) {
	b := NewBitmap(10)
	b.Set(5)
	b.Set(5)
	assert.True(t, b.IsSet(5))
	assert.Equal(t, 1, b.Count())
}

func TestBitmapCount(t *testing.T) {
	b := NewBitmap(130)
	assert.Equal(t, 0, b.Count())
	b.Set(0)
	b.Set(64)
	b.Set(129)
	assert.Equal(t, 3, b.Count())
}
