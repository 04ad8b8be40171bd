package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithoutEndpointIsDisabled(t *testing.T) {
	p, err := Setup(context.Background(), "advisor", "")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	p, err := Setup(context.Background(), "advisor", "http://127.0.0.1:4318")
	require.NoError(t, err)
	assert.True(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}
