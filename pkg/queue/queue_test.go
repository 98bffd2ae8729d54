package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySourceReceiveCounts(t *testing.T) {
	source := NewMemorySource()
	ctx := context.Background()

	source.Enqueue([]byte(`{"n":1}`))

	batch, err := source.Receive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].ReceiveCount)

	// Retry keeps the count growing across redeliveries.
	require.NoError(t, source.Retry(ctx, batch[0]))

	batch, err = source.Receive(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, batch[0].ReceiveCount)

	require.NoError(t, source.Ack(ctx, batch[0]))
	assert.Zero(t, source.PendingCount())

	batch, err = source.Receive(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestMemorySourceBatchLimit(t *testing.T) {
	source := NewMemorySource()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		source.Enqueue([]byte(`{}`))
	}

	batch, err := source.Receive(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, batch, 3)
	assert.Equal(t, 2, source.PendingCount())
}

func TestMemorySourceDeadLetter(t *testing.T) {
	source := NewMemorySource()
	ctx := context.Background()

	source.Enqueue([]byte(`broken`))

	batch, err := source.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, source.DeadLetter(ctx, batch[0]))

	dead := source.DeadLettered()
	require.Len(t, dead, 1)
	assert.Equal(t, []byte(`broken`), dead[0].Body)
	assert.Zero(t, source.PendingCount())
}

func TestMemorySourceCloseRequeuesInFlight(t *testing.T) {
	source := NewMemorySource()
	ctx := context.Background()

	source.Enqueue([]byte(`{"n":1}`))
	source.Enqueue([]byte(`{"n":2}`))

	batch, err := source.Receive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Zero(t, source.PendingCount())

	// An abandoned batch is never lost.
	require.NoError(t, source.Close(ctx))
	assert.Equal(t, 2, source.PendingCount())
}
