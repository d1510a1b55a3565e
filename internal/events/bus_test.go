package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/living-world/internal/clock"
)

func newTestBus(capacity int) (*Bus, *clock.Clock) {
	clk := clock.New(0, clock.DefaultConfig())
	return NewBus(clk, capacity, 0, nil), clk
}

func TestPublishStampsSequenceAndTime(t *testing.T) {
	bus, clk := newTestBus(10)
	clk.Advance(125)

	seq := bus.Publish(KindMoved, 4, 2, map[string]string{"from": "1"})
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, uint64(2), bus.NextSeq())
	assert.Equal(t, 1, bus.Pending())

	drained := bus.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(125), drained[0].Time.Total)
	assert.Equal(t, 2, drained[0].Time.Hour)
	assert.Equal(t, uint64(4), drained[0].Source)
	assert.Equal(t, 0, bus.Pending())
}

func TestPublishCopiesPayload(t *testing.T) {
	bus, _ := newTestBus(10)
	payload := map[string]string{"item": "sword"}
	bus.Publish(KindItemCrafted, 1, 1, payload)
	payload["item"] = "changed"

	drained := bus.Drain()
	assert.Equal(t, "sword", drained[0].Payload["item"])
}

func TestSubscriberEditsStayLocal(t *testing.T) {
	bus, _ := newTestBus(10)
	var seen []string
	bus.Subscribe(KindPlaceSpawned, func(e Event) error {
		seen = append(seen, e.Payload["name"])
		e.Payload["name"] = "Changed"
		return nil
	})
	bus.Subscribe(KindAny, func(e Event) error {
		seen = append(seen, e.Payload["name"])
		return nil
	})
	bus.Publish(KindPlaceSpawned, 0, 1, map[string]string{"name": "Oakford"})
	bus.Drain()

	assert.Equal(t, []string{"Oakford", "Oakford"}, seen)
	recent := bus.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "Oakford", recent[0].Payload["name"])

	recent[0].Payload["name"] = "Changed"
	assert.Equal(t, "Oakford", bus.History()[0].Payload["name"])
}

func TestHistoryKeepsMostRecent(t *testing.T) {
	bus, _ := newTestBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(KindSocialized, uint64(i+1), 0, nil)
	}
	bus.Drain()

	hist := bus.History()
	require.Len(t, hist, 3)
	assert.Equal(t, []uint64{3, 4, 5}, []uint64{hist[0].Seq, hist[1].Seq, hist[2].Seq})

	recent := bus.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, uint64(4), recent[0].Seq)
	assert.Equal(t, uint64(5), recent[1].Seq)
	assert.Len(t, bus.Recent(50), 3)
	assert.Nil(t, bus.Recent(0))
}

func TestSubscribersRunInOrder(t *testing.T) {
	bus, _ := newTestBus(10)
	var got []string
	bus.Subscribe(KindMoved, func(e Event) error { got = append(got, "a"); return nil })
	bus.Subscribe(KindAny, func(e Event) error { got = append(got, "any:"+string(e.Kind)); return nil })
	bus.Subscribe(KindMoved, func(e Event) error { got = append(got, "b"); return nil })

	bus.Publish(KindMoved, 1, 1, nil)
	bus.Publish(KindSocialized, 1, 1, nil)
	bus.Drain()

	assert.Equal(t, []string{"a", "any:moved", "b", "any:socialized"}, got)
}

func TestFailingSubscriberIsIsolated(t *testing.T) {
	bus, _ := newTestBus(10)
	var second, third []Kind
	bus.Subscribe("X", func(e Event) error { panic("boom") })
	bus.Subscribe("X", func(e Event) error { second = append(second, e.Kind); return nil })
	bus.Subscribe("Y", func(e Event) error { third = append(third, e.Kind); return errors.New("bad") })

	bus.Publish("X", 0, 0, nil)
	bus.Publish("Y", 0, 0, nil)
	drained := bus.Drain()

	assert.Len(t, drained, 2)
	assert.Equal(t, []Kind{"X"}, second)
	assert.Equal(t, []Kind{"Y"}, third)

	failures := bus.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, Kind("X"), failures[0].Kind)
	assert.Contains(t, failures[0].Err, "boom")
	assert.Equal(t, Kind("Y"), failures[1].Kind)
	assert.Equal(t, uint64(2), bus.FailureCount())
	assert.Len(t, bus.History(), 2)
}

func TestPublishDuringDrainIsDeferred(t *testing.T) {
	bus, _ := newTestBus(10)
	calls := 0
	bus.Subscribe(KindMoved, func(e Event) error {
		calls++
		bus.Publish(KindMoved, e.Source+1, 0, nil)
		return nil
	})

	bus.Publish(KindMoved, 1, 0, nil)
	first := bus.Drain()
	assert.Len(t, first, 1)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, bus.Pending())

	second := bus.Drain()
	require.Len(t, second, 1)
	assert.Equal(t, uint64(2), second[0].Source)
	assert.Equal(t, 2, calls)
}

func TestUnsubscribe(t *testing.T) {
	bus, _ := newTestBus(10)
	calls := 0
	cancel := bus.Subscribe(KindMoved, func(Event) error { calls++; return nil })
	bus.Publish(KindMoved, 0, 0, nil)
	bus.Drain()
	cancel()
	bus.Publish(KindMoved, 0, 0, nil)
	bus.Drain()
	assert.Equal(t, 1, calls)
}

func TestRestore(t *testing.T) {
	bus, _ := newTestBus(3)
	for i := 0; i < 4; i++ {
		bus.Publish(KindSocialized, 0, 0, nil)
	}
	bus.Drain()

	other, _ := newTestBus(3)
	require.NoError(t, other.Restore(bus.History(), bus.NextSeq()))
	assert.Equal(t, bus.History(), other.History())
	assert.Equal(t, uint64(5), other.NextSeq())

	assert.Error(t, other.Restore([]Event{{Seq: 2}, {Seq: 1}}, 5))
	assert.Error(t, other.Restore([]Event{{Seq: 4}}, 4))
}
