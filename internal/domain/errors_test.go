package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection reset")

	assert.Equal(t, KindTransientExternal, KindOf(Transient("list_requests", base)))
	assert.Equal(t, KindPersistence, KindOf(Persistence("save_request", base)))
	assert.Equal(t, KindDataInconsistency, KindOf(Inconsistent("apply_add", "no thread for %s", "rust")))

	// Unclassified errors keep the task alive
	assert.Equal(t, KindTransientExternal, KindOf(base))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("poll rust: %w", Persistence("save_activity", errors.New("database is locked")))
	assert.Equal(t, KindPersistence, KindOf(err))
}

func TestTaskError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := Transient("send_message", base)

	assert.True(t, errors.Is(err, base))
	assert.Equal(t, "send_message: transient_external: boom", err.Error())
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "transient_external", KindTransientExternal.String())
	assert.Equal(t, "persistence", KindPersistence.String())
	assert.Equal(t, "data_inconsistency", KindDataInconsistency.String())
	assert.Equal(t, "unknown", ErrorKind(42).String())
}
