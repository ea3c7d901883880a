package fanout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing(t *testing.T) {
	r := newRing[int](3)
	require.True(t, r.push(1))
	require.True(t, r.push(2))
	require.True(t, r.push(3))
	assert.False(t, r.push(4))

	head, ok := r.peek()
	require.True(t, ok)
	assert.Equal(t, 1, head)

	require.True(t, r.dropOldest())
	require.True(t, r.push(4))
	assert.Equal(t, []int{2, 3}, r.popBatch(2))
	assert.Equal(t, []int{4}, r.popBatch(0))
	assert.Nil(t, r.popBatch(1))
	assert.False(t, r.dropOldest())
	assert.Equal(t, 0, r.len())
}
