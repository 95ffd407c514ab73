package clock

import (
	"testing"
	"time"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var order []string
	c.AfterFunc(2*time.Minute, func() { order = append(order, "b") })
	c.AfterFunc(time.Minute, func() { order = append(order, "a") })
	c.AfterFunc(5*time.Minute, func() { order = append(order, "c") })

	c.Advance(3 * time.Minute)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
	if got := c.Now(); !got.Equal(start.Add(3 * time.Minute)) {
		t.Fatalf("now = %v", got)
	}
	if c.Pending() != 1 {
		t.Fatalf("pending = %d", c.Pending())
	}
}

func TestFakeCallbackSeesDeadlineAndReschedules(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fires []time.Time
	var tick func()
	tick = func() {
		fires = append(fires, c.Now())
		c.AfterFunc(30*time.Second, tick)
	}
	c.AfterFunc(30*time.Second, tick)

	c.Advance(2 * time.Minute)
	if len(fires) != 4 {
		t.Fatalf("expected 4 ticks, got %d", len(fires))
	}
	for i, at := range fires {
		want := start.Add(time.Duration(i+1) * 30 * time.Second)
		if !at.Equal(want) {
			t.Fatalf("tick %d at %v, want %v", i, at, want)
		}
	}
}

func TestFakeStop(t *testing.T) {
	c := NewFake(time.Now())
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("first stop should report true")
	}
	if timer.Stop() {
		t.Fatal("second stop should report false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}
