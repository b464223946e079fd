package agents

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinderBindAndFind(t *testing.T) {
	binder := NewBinder(logrus.New())
	ctx := context.Background()

	agents, err := binder.FindAgentsReferencing(ctx, "/artifacts/v1.0.0")
	require.NoError(t, err)
	assert.Empty(t, agents)

	binder.Bind("edge-agent-7", "/artifacts/v1.0.0")
	binder.Bind("edge-agent-2", "/artifacts/v1.0.0")
	binder.Bind("edge-agent-2", "/artifacts/v1.0.0")
	binder.Bind("edge-agent-9", "/artifacts/v2.0.0")

	agents, err = binder.FindAgentsReferencing(ctx, "/artifacts/v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, []string{"edge-agent-2", "edge-agent-7"}, agents)
}

func TestBinderUnbind(t *testing.T) {
	binder := NewBinder(logrus.New())
	ctx := context.Background()

	binder.Bind("edge-agent-7", "/artifacts/v1.0.0")
	binder.Unbind("edge-agent-7", "/artifacts/v1.0.0")

	agents, err := binder.FindAgentsReferencing(ctx, "/artifacts/v1.0.0")
	require.NoError(t, err)
	assert.Empty(t, agents)

	// Unbinding an unknown pair is a no-op.
	binder.Unbind("edge-agent-7", "/artifacts/v9.9.9")
}
