package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dukex/bookflow/pkg/events"
	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/notifier"
	"github.com/dukex/bookflow/pkg/queue"
	"github.com/dukex/bookflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEventBody(t *testing.T, title string) []byte {
	t.Helper()

	book := testutil.CreateTestBook(testutil.WithState(models.BookStateSubmitted))
	book.Title = title
	previous := models.BookStateDraft

	raw, err := json.Marshal(events.NewBookStatusChange(book, &previous, "author-1", "", nil))
	require.NoError(t, err)

	return raw
}

func newDispatcher(source queue.Source, target notifier.Notifier, config Config) *Dispatcher {
	return NewDispatcher(source, target, slog.Default(), config)
}

func TestProcessBatchDeliversNotifications(t *testing.T) {
	source := queue.NewMemorySource()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		source.Enqueue(validEventBody(t, fmt.Sprintf("Book %d", i)))
	}

	var notified []string

	dispatcher := newDispatcher(source, notifier.NotifierFunc(
		func(_ context.Context, event *events.BookStatusChange) error {
			notified = append(notified, event.Payload.Title)

			return nil
		}), Config{})

	result, err := dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Received)
	assert.Equal(t, 3, result.Processed)
	assert.Zero(t, result.Retried)
	assert.Zero(t, result.DeadLettered)
	assert.Len(t, notified, 3)
	assert.Zero(t, source.PendingCount())
}

// One malformed message in a batch of ten: the other nine are processed and
// only the malformed one is dead-lettered, in the same pass.
func TestProcessBatchIsolatesPoisonMessage(t *testing.T) {
	source := queue.NewMemorySource()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if i == 4 {
			source.Enqueue([]byte(`{"eventType":"book.status.changed","payload":{}}`))

			continue
		}

		source.Enqueue(validEventBody(t, fmt.Sprintf("Book %d", i)))
	}

	notified := 0

	dispatcher := newDispatcher(source, notifier.NotifierFunc(
		func(_ context.Context, _ *events.BookStatusChange) error {
			notified++

			return nil
		}), Config{BatchSize: 10})

	result, err := dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Received)
	assert.Equal(t, 9, result.Processed)
	assert.Equal(t, 1, result.DeadLettered)
	assert.Equal(t, 9, notified)
	require.Len(t, source.DeadLettered(), 1)
	assert.Zero(t, source.PendingCount())
}

func TestInvalidEventDeadLettersImmediately(t *testing.T) {
	source := queue.NewMemorySource()
	ctx := context.Background()

	source.Enqueue([]byte(`not json`))

	dispatcher := newDispatcher(source, notifier.NotifierFunc(
		func(_ context.Context, _ *events.BookStatusChange) error {
			t.Fatal("notifier must not see invalid events")

			return nil
		}), Config{})

	result, err := dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)

	// No retries for poison: straight to the dead-letter destination.
	assert.Equal(t, 1, result.DeadLettered)
	assert.Len(t, source.DeadLettered(), 1)
	assert.Zero(t, source.PendingCount())
}

func TestNotifyFailureRetriesThenDeadLetters(t *testing.T) {
	source := queue.NewMemorySource()
	ctx := context.Background()

	source.Enqueue(validEventBody(t, "Unlucky Book"))

	attempts := 0

	dispatcher := newDispatcher(source, notifier.NotifierFunc(
		func(_ context.Context, _ *events.BookStatusChange) error {
			attempts++

			return errors.New("webhook endpoint down")
		}), Config{MaxReceiveCount: 3})

	for i := 1; i <= 2; i++ {
		result, err := dispatcher.ProcessBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Retried, "attempt %d", i)
		assert.Equal(t, 1, source.PendingCount())
	}

	// Third receive exhausts the budget.
	result, err := dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeadLettered)
	assert.Equal(t, 3, attempts)
	assert.Len(t, source.DeadLettered(), 1)
	assert.Zero(t, source.PendingCount())
}

func TestNotifyFailureRecoversOnRetry(t *testing.T) {
	source := queue.NewMemorySource()
	ctx := context.Background()

	source.Enqueue(validEventBody(t, "Flaky Book"))

	attempts := 0

	dispatcher := newDispatcher(source, notifier.NotifierFunc(
		func(_ context.Context, _ *events.BookStatusChange) error {
			attempts++
			if attempts == 1 {
				return errors.New("transient timeout")
			}

			return nil
		}), Config{})

	result, err := dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Retried)

	result, err = dispatcher.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Empty(t, source.DeadLettered())
	assert.Zero(t, source.PendingCount())
}

func TestEmptyBatch(t *testing.T) {
	source := queue.NewMemorySource()

	dispatcher := newDispatcher(source, notifier.NewSlogNotifier(slog.Default()), Config{})

	result, err := dispatcher.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Received)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	source := queue.NewMemorySource()

	dispatcher := newDispatcher(source, notifier.NewSlogNotifier(slog.Default()), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dispatcher.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigDefaults(t *testing.T) {
	config := Config{}.withDefaults()

	assert.Equal(t, defaultBatchSize, config.BatchSize)
	assert.Equal(t, defaultMaxReceiveCount, config.MaxReceiveCount)
	assert.Equal(t, defaultIdleWait, config.IdleWait)

	custom := Config{BatchSize: 25, MaxReceiveCount: 2}.withDefaults()
	assert.Equal(t, 25, custom.BatchSize)
	assert.Equal(t, 2, custom.MaxReceiveCount)
}
