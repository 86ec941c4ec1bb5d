package work

import (
	"context"
	"testing"

	"github.com/aristath/requestmirror/internal/queue"
	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get(queue.KindApplyAdd))

	calls := 0
	r.Register(queue.KindApplyAdd, func(context.Context, queue.Task) error { calls++; return nil })
	r.Register(queue.KindPollSource, func(context.Context, queue.Task) error { return nil })

	handler := r.Get(queue.KindApplyAdd)
	if assert.NotNil(t, handler) {
		assert.NoError(t, handler(context.Background(), queue.Task{}))
	}
	assert.Equal(t, 1, calls)
	assert.NotNil(t, r.Get(queue.KindPollSource))
}

func TestNew_RegistersEveryKind(t *testing.T) {
	f := newFixture(t)
	for _, kind := range queue.Kinds {
		assert.NotNil(t, f.w.registry.Get(kind), kind)
	}
}
