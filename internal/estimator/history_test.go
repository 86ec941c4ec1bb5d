package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(base.Add(time.Duration(i) * time.Minute))
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []time.Time{
		base.Add(2 * time.Minute),
		base.Add(3 * time.Minute),
		base.Add(4 * time.Minute),
	}, h.Values())
}

func TestHistory_KeepsSortedWhenAddedOutOfOrder(t *testing.T) {
	h := NewHistory(10, base.Add(10*time.Minute), base)
	h.Add(base.Add(5 * time.Minute))

	assert.Equal(t, []time.Time{base, base.Add(5 * time.Minute), base.Add(10 * time.Minute)}, h.Values())
}

func TestHistory_ValuesIsCopy(t *testing.T) {
	h := NewHistory(2, base)
	values := h.Values()
	values[0] = base.Add(time.Hour)

	assert.Equal(t, base, h.Values()[0])
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Values())
}
