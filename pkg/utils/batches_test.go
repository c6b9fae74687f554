package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchPlan(t *testing.T) {
	t.Run("partial last batch", func(t *testing.T) {
		plan := NewBatchPlan(2500, 1000)
		batches := plan.Batches()

		assert.Equal(t, 3, plan.Count())
		assert.Len(t, batches, 3)
		assert.Equal(t, []int{0, 1000, 2000}, []int{batches[0].Offset, batches[1].Offset, batches[2].Offset})
		assert.Equal(t, []int{1000, 2000, 2500}, []int{batches[0].Completed, batches[1].Completed, batches[2].Completed})
		assert.False(t, batches[1].Last)
		assert.True(t, batches[2].Last)
	})

	t.Run("exact multiple", func(t *testing.T) {
		plan := NewBatchPlan(3000, 1000)
		assert.Equal(t, 3, plan.Count())
		assert.Equal(t, 3000, plan.Batches()[2].Completed)
	})

	t.Run("empty", func(t *testing.T) {
		plan := NewBatchPlan(0, 1000)
		assert.Equal(t, 0, plan.Count())
		assert.Empty(t, plan.Batches())
	})

	t.Run("batch count is ceil for any n", func(t *testing.T) {
		for n := 0; n <= 35; n++ {
			plan := NewBatchPlan(n, 7)
			assert.Equal(t, (n+6)/7, len(plan.Batches()), "n=%d", n)
		}
	})

	t.Run("invalid size", func(t *testing.T) {
		plan := NewBatchPlan(3, 0)
		assert.Equal(t, 3, plan.Count())
	})
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 100, Percent(0, 0))
	assert.Equal(t, 40, Percent(1000, 2500))
	assert.Equal(t, 80, Percent(2000, 2500))
	assert.Equal(t, 100, Percent(2500, 2500))
	assert.Equal(t, 34, Percent(1, 3))
	assert.Equal(t, 1, Percent(1, 1000))
}
