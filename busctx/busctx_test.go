package busctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbose(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	assert.True(t, IsVerbose(SetVerbose(ctx, true)))
	assert.False(t, IsVerbose(SetVerbose(SetVerbose(ctx, true), false)))
}

func TestTarget(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Target(ctx))
	assert.Equal(t, "tmp102", Target(WithTarget(ctx, "tmp102")))
}
