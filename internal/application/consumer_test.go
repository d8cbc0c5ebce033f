package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

const scene01Created = `{"Records":[{
  "eventName": "ObjectCreated:Put",
  "eventId": "evt-1",
  "s3": {
    "bucket": {"name": "data"},
    "object": {
      "key": "scene01.tif",
      "metadata": [
        {"key": "x-amz-content-sha256", "val": "UNSIGNED-PAYLOAD"},
        {"key": "x-amz-meta-fairease.catalog.mediatype", "val": "COG"}
      ]
    }
  }
}]}`

const scene01Removed = `{"Records":[{
  "eventName": "ObjectRemoved:Delete",
  "eventId": "evt-2",
  "s3": {"bucket": {"name": "data"}, "object": {"key": "scene01.tif"}}
}]}`

type consumerEnv struct {
	*testEnv
	subscriber *fakeSubscriber
	journal    *memJournal
	consumer   *Consumer
	acks       []string
	journaled  []int // journal length at each ack
}

func newConsumerEnv(t *testing.T) *consumerEnv {
	t.Helper()
	env := &consumerEnv{
		testEnv:    newTestEnv(),
		subscriber: newFakeSubscriber(16),
		journal:    &memJournal{},
	}
	env.consumer = NewConsumer(env.subscriber, env.updater, env.journal, env.metrics, newTestLogger())
	env.consumer.now = func() time.Time { return fixedTime }
	return env
}

// send queues a delivery whose ack is recorded together with the number of
// records already journaled at that point.
func (e *consumerEnv) send(source, body string) {
	e.subscriber.ch <- output.Delivery{
		Body:       []byte(body),
		Source:     source,
		ReceivedAt: fixedTime,
		Ack: func() error {
			e.acks = append(e.acks, source)
			e.journaled = append(e.journaled, len(e.journal.entries))
			return nil
		},
	}
}

// drain closes the channel as a lost transport and runs the loop to the end.
func (e *consumerEnv) drain(t *testing.T) error {
	t.Helper()
	e.subscriber.err = domain.ErrBusDisconnected
	close(e.subscriber.ch)
	return e.consumer.Run(context.Background(), e.catalog)
}

func TestConsumerDoubleDeliveryInsertsOnce(t *testing.T) {
	env := newConsumerEnv(t)
	env.send("q1", scene01Created)
	env.send("q2", scene01Created)

	err := env.drain(t)
	assert.ErrorIs(t, err, domain.ErrBusDisconnected)

	assert.Equal(t, 1, env.catalog.ItemCount())
	assert.Equal(t, 1, env.extractor.callCount())
	assert.Equal(t, []string{"q1", "q2"}, env.acks)
	assert.Equal(t, []int{0, 1}, env.journaled, "each delivery is acknowledged before its records are handled")

	require.Len(t, env.journal.entries, 2)
	assert.Equal(t, string(domain.OutcomeInserted), env.journal.entries[0].Outcome)
	assert.Equal(t, string(domain.OutcomeExists), env.journal.entries[1].Outcome)
	assert.Equal(t, "scene01", env.journal.entries[0].ItemID)
	assert.Equal(t, "evt-1", env.journal.entries[0].EventID)
	assert.Equal(t, "data", env.journal.entries[0].Bucket)

	assert.Equal(t, 2, env.metrics.classes["created"])
	assert.Equal(t, 1, env.metrics.outcomes["inserted"])
	assert.Equal(t, 1, env.metrics.outcomes["exists"])

	snap, ok := env.consumer.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1, snap.ItemCount)
	assert.Equal(t, "s3://data/scene01.tif", snap.Items[0].Asset)
}

func TestConsumerRemovalMakesNoMutation(t *testing.T) {
	env := newConsumerEnv(t)
	env.send("q1", scene01Created)
	env.send("q2", scene01Removed)

	_ = env.drain(t)

	assert.True(t, env.catalog.HasItem("scene01"))
	require.Len(t, env.journal.entries, 2)
	assert.Equal(t, string(domain.OutcomeRemovalIgnored), env.journal.entries[1].Outcome)
	assert.Equal(t, 1, env.metrics.classes["removed"])
}

func TestConsumerSkipsMalformedAndContinues(t *testing.T) {
	env := newConsumerEnv(t)
	env.send("malformed", `{"Records": "nope"`)
	env.send("empty", `{"something": []}`)
	env.send("q1", scene01Created)

	_ = env.drain(t)

	assert.Equal(t, 2, env.metrics.malformed)
	assert.Equal(t, 1, env.catalog.ItemCount())
	assert.Len(t, env.acks, 3, "malformed deliveries are acknowledged too")
}

func TestConsumerIgnoresOtherEvents(t *testing.T) {
	env := newConsumerEnv(t)
	env.send("q1", `{"Records":[{"eventName":"ObjectTagging:Put","eventId":"t1",
		"s3":{"bucket":{"name":"data"},"object":{"key":"scene01.tif",
		"metadata":[{"key":"x-amz-meta-fairease.catalog.mediatype","val":"COG"}]}}}]}`)

	_ = env.drain(t)

	assert.Zero(t, env.catalog.ItemCount())
	assert.Zero(t, env.extractor.callCount())
	require.Len(t, env.journal.entries, 1)
	assert.Equal(t, string(domain.OutcomeIgnored), env.journal.entries[0].Outcome)
	assert.Equal(t, 1, env.metrics.classes["other"])
}

func TestConsumerRecordFailureContinuesBatch(t *testing.T) {
	env := newConsumerEnv(t)
	env.send("q1", `{"Records":[
	  {"eventName":"ObjectCreated:Put","eventId":"bad","s3":{"bucket":{"name":""},"object":{"key":"x.tif"}}},
	  {"eventName":"ObjectCreated:Put","eventId":"good","s3":{"bucket":{"name":"data"},"object":{"key":"scene01.tif",
	    "metadata":[{"key":"x-amz-meta-fairease.catalog.mediatype","val":"COG"}]}}}
	]}`)

	_ = env.drain(t)

	assert.Equal(t, 1, env.catalog.ItemCount())
	processed, failed := env.consumer.Stats()
	assert.Equal(t, int64(1), processed)
	assert.Equal(t, int64(1), failed)
	require.Len(t, env.journal.entries, 2)
	assert.Equal(t, string(domain.OutcomeFailed), env.journal.entries[0].Outcome)
	assert.NotEmpty(t, env.journal.entries[0].Error)
}

func TestConsumerExtractionFailureIsLogged(t *testing.T) {
	env := newConsumerEnv(t)
	env.extractor.err = errors.New("corrupt header")
	env.send("q1", scene01Created)

	err := env.drain(t)
	assert.ErrorIs(t, err, domain.ErrBusDisconnected)

	assert.Zero(t, env.catalog.ItemCount())
	assert.Equal(t, 1, env.metrics.outcomes["failed"])
	_, failed := env.consumer.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestConsumerStopsOnCancel(t *testing.T) {
	env := newConsumerEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- env.consumer.Run(ctx, env.catalog) }()

	require.Eventually(t, func() bool {
		return env.consumer.State() == StateSubscribed
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, StateShutdown, env.consumer.State())
	assert.True(t, env.subscriber.closed)
}

func TestConsumerSubscribeFailure(t *testing.T) {
	env := newConsumerEnv(t)
	env.subscriber.subscribeErr = domain.ErrTransport

	err := env.consumer.Run(context.Background(), env.catalog)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, StateShutdown, env.consumer.State())
}

func TestConsumerClosedChannelWithoutError(t *testing.T) {
	env := newConsumerEnv(t)
	close(env.subscriber.ch)

	err := env.consumer.Run(context.Background(), env.catalog)
	assert.ErrorIs(t, err, domain.ErrBusDisconnected)
}

func TestConsumerRecentEvents(t *testing.T) {
	env := newConsumerEnv(t)
	env.send("q1", scene01Created)
	env.send("q2", scene01Removed)
	_ = env.drain(t)

	events, err := env.consumer.RecentEvents(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-2", events[0].EventID)
}

func TestHealthService(t *testing.T) {
	env := newConsumerEnv(t)
	health := NewHealthService(env.consumer)
	ctx := context.Background()

	assert.True(t, health.IsHealthy(ctx))
	assert.False(t, health.IsReady(ctx), "not ready before subscribing")

	details := health.GetHealthDetails(ctx)
	assert.Equal(t, string(StateDisconnected), details.State)
	assert.Equal(t, "not loaded", details.Components["catalog"])

	env.send("q1", scene01Created)
	_ = env.drain(t)

	details = health.GetHealthDetails(ctx)
	assert.False(t, details.Healthy)
	assert.False(t, details.Ready)
	assert.Equal(t, string(StateShutdown), details.State)
	assert.Equal(t, 1, details.CatalogItems)
	assert.Equal(t, int64(1), details.Processed)
	assert.Equal(t, "ok", details.Components["catalog"])
	assert.Equal(t, string(StateShutdown), details.Components["bus"])
}

func TestHealthServiceReadyWhileSubscribed(t *testing.T) {
	env := newConsumerEnv(t)
	health := NewHealthService(env.consumer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = env.consumer.Run(ctx, env.catalog) }()

	require.Eventually(t, func() bool { return health.IsReady(ctx) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "ok", health.GetHealthDetails(ctx).Components["bus"])
}
