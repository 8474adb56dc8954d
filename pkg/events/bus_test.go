package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Publish(Event{Type: TypeJobStarted, Payload: JobStartedPayload{JobID: "job-1"}})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeJobStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestBus_MultipleSubscribersEachReceive(t *testing.T) {
	bus := NewBus()
	ch1, unsub1 := bus.Subscribe()
	defer unsub1()
	ch2, unsub2 := bus.Subscribe()
	defer unsub2()

	bus.Publish(Event{Type: TypeJobCancelled, Payload: JobCancelledPayload{JobID: "job-2"}})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, TypeJobCancelled, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublisher_JobProgress_ComputesFraction(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	pub := NewPublisher(bus)
	pub.JobProgress("job-3", 5, 20)

	ev := <-ch
	payload, ok := ev.Payload.(JobProgressPayload)
	require.True(t, ok)
	assert.Equal(t, 0.25, payload.Progress)
}

func TestPublisher_JobProgress_ZeroTotalStepsYieldsZero(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	pub := NewPublisher(bus)
	pub.JobProgress("job-4", 0, 0)

	ev := <-ch
	payload := ev.Payload.(JobProgressPayload)
	assert.Equal(t, 0.0, payload.Progress)
}
