package eventbus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/bookflow/pkg/channels/gochannel"
	"github.com/dukex/bookflow/pkg/eventbus"
	"github.com/dukex/bookflow/pkg/events"
	"github.com/dukex/bookflow/pkg/models"
	"github.com/dukex/bookflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	return eventbus.NewWatermillEventBus(pub, sub)
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []*events.BookStatusChange
	)

	err := bus.Handle(events.BookStatusChangedEvent, func(_ context.Context, event any) error {
		statusChange, ok := event.(*events.BookStatusChange)
		if !ok {
			t.Errorf("unexpected event type %T", event)

			return nil
		}

		mu.Lock()
		received = append(received, statusChange)
		mu.Unlock()

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	book := testutil.CreateTestBook(testutil.WithState(models.BookStatePublished))
	previous := models.BookStateReady
	event := events.NewBookStatusChange(book, &previous, "publisher-1", "", nil)

	require.NoError(t, bus.Publish(ctx, book.ID, event))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, event.EventID, received[0].EventID)
	assert.Equal(t, book.ID, received[0].Payload.SubjectID)
	assert.Equal(t, string(models.BookStatePublished), received[0].Payload.NewState)
}

func TestUnhandledEventTypeIsAcked(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No handler registered: publishing must still succeed and not wedge the
	// subscription.
	require.NoError(t, bus.Subscribe(ctx))

	book := testutil.CreateTestBook()
	require.NoError(t, bus.Publish(ctx, book.ID, events.NewBookStatusChange(book, nil, book.OwnerID, "", nil)))
}

func TestGenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
