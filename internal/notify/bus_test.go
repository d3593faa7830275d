package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_dashboard/internal/models"
)

func messages(toasts []models.Toast) []string {
	out := make([]string, len(toasts))
	for i, t := range toasts {
		out[i] = t.Message
	}
	return out
}

func TestEmitKeepsEmissionOrder(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	bus.EmitFor("first", models.SeverityInfo, 0)
	bus.EmitFor("second", models.SeverityError, 0)
	bus.EmitFor("third", models.SeveritySuccess, 0)

	assert.Equal(t, []string{"first", "second", "third"}, messages(bus.Active()))
}

func TestEmitDefaultsToInfo(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	bus.EmitFor("hello", "", 0)

	active := bus.Active()
	require.Len(t, active, 1)
	assert.Equal(t, models.SeverityInfo, active[0].Severity)
	assert.True(t, active[0].ExpiresAt.IsZero())
}

func TestIDsAreUniqueWithinSameMillisecond(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	a := bus.EmitFor("a", models.SeverityInfo, 0)
	b := bus.EmitFor("b", models.SeverityInfo, 0)
	c := bus.EmitFor("c", models.SeverityInfo, 0)

	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestToastExpires(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	bus.EmitFor("short", models.SeverityWarning, 20*time.Millisecond)
	bus.EmitFor("sticky", models.SeverityInfo, 0)

	require.Eventually(t, func() bool {
		return len(bus.Active()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"sticky"}, messages(bus.Active()))
}

func TestDismissRemovesOnlyTarget(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	bus.Emit("one", models.SeverityInfo)
	two := bus.Emit("two", models.SeverityInfo)
	bus.Emit("three", models.SeverityInfo)

	bus.Dismiss(two)
	assert.Equal(t, []string{"one", "three"}, messages(bus.Active()))

	bus.Dismiss(two)
	bus.Dismiss(12345)
	assert.Len(t, bus.Active(), 2)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	bus := NewBus(nil)
	defer bus.Close()

	var mu sync.Mutex
	var seen [][]string
	unsubscribe := bus.Subscribe(func(active []models.Toast) {
		mu.Lock()
		seen = append(seen, messages(active))
		mu.Unlock()
	})

	id := bus.Success("saved")
	bus.Dismiss(id)
	unsubscribe()
	bus.Error("ignored")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"saved"}, {}}, seen)
}
