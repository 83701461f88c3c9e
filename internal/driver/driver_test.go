package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type countingManager struct {
	ticks int
	err   error
}

func (m *countingManager) Tick(context.Context) error {
	m.ticks++
	return m.err
}

type slowManager struct {
	delay   time.Duration
	expired bool
}

func (m *slowManager) Tick(ctx context.Context) error {
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		m.expired = true
	}
	return nil
}

func TestDriver_Tick(t *testing.T) {
	tests := map[string]struct {
		firstErr  error
		expErr    bool
		expSecond int
	}{
		"all managers ticked": {expSecond: 1},
		"error stops the tick": {
			firstErr:  errors.New("boom"),
			expErr:    true,
			expSecond: 0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			first := &countingManager{err: tt.firstErr}
			second := &countingManager{}
			d := NewDriver([]Manager{first, second})

			err := d.Tick(context.Background())
			testutil.AssertEqual(t, "error", err != nil, tt.expErr)
			testutil.AssertEqual(t, "first", first.ticks, 1)
			testutil.AssertEqual(t, "second", second.ticks, tt.expSecond)
			testutil.AssertEqual(t, "ticks", d.Ticks(), int64(1))
		})
	}
}

func TestDriver_TickWrapsError(t *testing.T) {
	d := NewDriver([]Manager{&countingManager{}, &countingManager{err: errors.New("boom")}})

	err := d.Tick(context.Background())
	testutil.AssertErrorContains(t, err, "tick 1, manager 1: boom")
}

func TestDriver_Overruns(t *testing.T) {
	tests := map[string]struct {
		delay       time.Duration
		expOverruns int64
	}{
		"within tick length": {delay: 0, expOverruns: 0},
		"past tick length":   {delay: 30 * time.Millisecond, expOverruns: 1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDriver([]Manager{&slowManager{delay: tt.delay}}, WithTickLength(10*time.Millisecond))

			if err := d.Tick(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "overruns", d.Overruns(), tt.expOverruns)
		})
	}
}

func TestDriver_TickTimeout(t *testing.T) {
	m := &slowManager{delay: time.Second}
	d := NewDriver([]Manager{m}, WithTickTimeout(10*time.Millisecond))

	start := time.Now()
	if err := d.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "manager saw deadline", m.expired, true)
	testutil.AssertEqual(t, "returned early", time.Since(start) < time.Second, true)
}

func TestDriver_Start(t *testing.T) {
	m := &countingManager{}
	d := NewDriver([]Manager{m}, WithTickLength(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.ticks == 0 {
		t.Error("expected at least one tick")
	}
}

func TestDriver_StartStopsOnError(t *testing.T) {
	m := &countingManager{err: errors.New("boom")}
	d := NewDriver([]Manager{m}, WithTickLength(time.Millisecond))

	err := d.Start(context.Background())
	testutil.AssertErrorContains(t, err, "boom")
	testutil.AssertEqual(t, "ticks", m.ticks, 1)
}
