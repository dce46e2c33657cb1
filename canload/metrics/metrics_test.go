package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpTimer(t *testing.T) {
	timer := &noopTimer{}
	parent := context.Background()

	ctx, closeTxn := timer.new(parent, "someTxnName")
	assert.NotNil(t, ctx)
	assert.NotNil(t, closeTxn)
	assert.Equal(t, parent, ctx)
	closeTxn()

	closeChild := timer.newChild(ctx, "someChildName")
	assert.NotNil(t, closeChild)
	closeChild()
}

// TestDefaultTimer validates that we return a non-nil timer when we cannot
// instantiate a New Relic backed one (no license key in the test env).
func TestDefaultTimer(t *testing.T) {
	timer := GetTimer()
	assert.NotNil(t, timer)
	assert.IsType(t, &noopTimer{}, timer)
}

func TestTimerFromContext(t *testing.T) {
	// An empty context falls back to the no-op timer rather than panicking.
	closeChild := NewChild(context.Background(), "orphan")
	assert.NotNil(t, closeChild)
	closeChild()

	ctx := NewContext(context.Background(), &noopTimer{})
	ctx, closeTxn := NewParent(ctx, "parent")
	assert.NotNil(t, ctx)
	closeTxn()
}
