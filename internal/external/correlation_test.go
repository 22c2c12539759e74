package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationTable_AllocateReturnsDistinctIDs(t *testing.T) {
	table := newCorrelationTable()
	first := table.allocate()
	second := table.allocate()
	assert.NotEqual(t, first, second)
	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
}

func TestCorrelationTable_CancelThenIsCancelled(t *testing.T) {
	table := newCorrelationTable()
	id := table.allocate()

	assert.False(t, table.isCancelled(id))
	table.cancel(id)
	assert.True(t, table.isCancelled(id))
}

func TestCorrelationTable_ForgetClearsCancelledState(t *testing.T) {
	table := newCorrelationTable()
	id := table.allocate()
	table.cancel(id)
	table.forget(id)
	assert.False(t, table.isCancelled(id))
}
