package bufpool

import (
	"sync"
	"testing"
)

type testBuf struct {
	data  []byte
	reset int
}

func newTestPool(capacity int) *Pool[*testBuf] {
	return New(capacity,
		func() *testBuf { return &testBuf{} },
		func(b *testBuf) {
			b.data = b.data[:0]
			b.reset++
		},
	)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"valid_capacity", 8, 8},
		{"zero_uses_default", 0, DefaultCapacity},
		{"negative_uses_default", -3, DefaultCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPool(tt.capacity)
			if got := p.Stats().Capacity; got != tt.want {
				t.Errorf("Capacity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAcquire_EmptyPoolAllocates(t *testing.T) {
	p := newTestPool(2)

	b := p.Acquire()
	if b == nil {
		t.Fatal("Acquire returned nil")
	}

	stats := p.Stats()
	if stats.Misses != 1 || stats.Hits != 0 {
		t.Errorf("stats = %+v, want 1 miss and 0 hits", stats)
	}
}

func TestRelease_ReusesSpare(t *testing.T) {
	p := newTestPool(2)

	b := p.Acquire()
	b.data = append(b.data, "payload"...)
	p.Release(b)

	got := p.Acquire()
	if got != b {
		t.Fatal("expected the released buffer to be reused")
	}
	if len(got.data) != 0 {
		t.Errorf("reused buffer not reset: %q", got.data)
	}
	if got.reset != 1 {
		t.Errorf("reset called %d times, want 1", got.reset)
	}
	if p.Stats().Hits != 1 {
		t.Errorf("Hits = %d, want 1", p.Stats().Hits)
	}
}

func TestRelease_DropsBeyondCapacity(t *testing.T) {
	p := newTestPool(1)

	p.Release(&testBuf{})
	p.Release(&testBuf{})
	p.Release(&testBuf{})

	if got := p.Stats().Dropped; got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
}

func TestRelease_NilResetFunc(t *testing.T) {
	p := New(1, func() []int { return make([]int, 0, 4) }, nil)

	p.Release(make([]int, 0, 4))
	if got := p.Acquire(); cap(got) != 4 {
		t.Errorf("cap = %d, want 4", cap(got))
	}
}

func TestConcurrent_AcquireRelease(t *testing.T) {
	p := newTestPool(4)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				b := p.Acquire()
				b.data = append(b.data, byte(i))
				p.Release(b)
			}
		}()
	}
	wg.Wait()

	stats := p.Stats()
	if stats.Hits+stats.Misses != 8000 {
		t.Errorf("hits+misses = %d, want 8000", stats.Hits+stats.Misses)
	}
}
