package workerpool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_DefaultSize(t *testing.T) {
	p := New[int](0)
	defer p.Shutdown(true)

	if p.Size() <= 0 {
		t.Errorf("Size() = %d, want > 0", p.Size())
	}
}

func TestPool_SubmitAndWait(t *testing.T) {
	p := New[int](2)
	defer p.Shutdown(true)

	fut, err := p.Submit(func() (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	got, err := fut.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Wait() = %d, want 42", got)
	}
}

func TestPool_OnComplete(t *testing.T) {
	p := New[string](1)

	release := make(chan struct{})
	fut, err := p.Submit(func() (string, error) {
		<-release
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var calls atomic.Int32
	var got string
	fut.OnComplete(func(result string, err error) {
		calls.Add(1)
		got = result
	})
	close(release)
	p.Shutdown(true)

	if calls.Load() != 1 {
		t.Fatalf("callback calls = %d, want 1", calls.Load())
	}
	if got != "done" {
		t.Errorf("result = %q, want %q", got, "done")
	}
}

func TestFuture_OnCompleteAfterDone(t *testing.T) {
	p := New[int](1)
	defer p.Shutdown(true)

	fut, _ := p.Submit(func() (int, error) { return 7, nil })
	<-fut.Done()

	var got int
	fut.OnComplete(func(result int, err error) { got = result })
	if got != 7 {
		t.Errorf("late callback result = %d, want 7", got)
	}
}

func TestPool_TaskError(t *testing.T) {
	p := New[int](1)
	defer p.Shutdown(true)

	boom := errors.New("boom")
	fut, _ := p.Submit(func() (int, error) { return 0, boom })

	if _, err := fut.Wait(); !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v, want %v", err, boom)
	}

	p.Shutdown(true)
	if stats := p.Stats(); stats.Failed != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v, want 1 failed of 1 completed", stats)
	}
}

func TestPool_RecoversPanic(t *testing.T) {
	p := New[int](1)
	defer p.Shutdown(true)

	fut, _ := p.Submit(func() (int, error) { panic("kaboom") })

	_, err := fut.Wait()
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("Wait() error = %v, want ErrPanic", err)
	}

	fut, _ = p.Submit(func() (int, error) { return 1, nil })
	if got, err := fut.Wait(); err != nil || got != 1 {
		t.Errorf("pool unusable after panic: got %d, %v", got, err)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := New[int](size)

	var running, peak atomic.Int32
	for i := 0; i < 20; i++ {
		_, err := p.Submit(func() (int, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			return 0, nil
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	p.Shutdown(true)

	if peak.Load() > size {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), size)
	}
}

func TestPool_Shutdown(t *testing.T) {
	p := New[int](2)

	var finished atomic.Int32
	for i := 0; i < 4; i++ {
		_, _ = p.Submit(func() (int, error) {
			time.Sleep(5 * time.Millisecond)
			finished.Add(1)
			return 0, nil
		})
	}

	p.Shutdown(true)
	if finished.Load() != 4 {
		t.Errorf("finished = %d, want 4 after waiting shutdown", finished.Load())
	}

	p.Shutdown(true)
	p.Shutdown(false)

	if _, err := p.Submit(func() (int, error) { return 0, nil }); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after Shutdown error = %v, want ErrPoolClosed", err)
	}
}

func TestPool_ShutdownNoWait(t *testing.T) {
	p := New[int](1)

	release := make(chan struct{})
	fut, _ := p.Submit(func() (int, error) {
		<-release
		return 3, nil
	})

	p.Shutdown(false)
	select {
	case <-fut.Done():
		t.Fatal("task finished before release")
	default:
	}

	close(release)
	if got, _ := fut.Wait(); got != 3 {
		t.Errorf("in-flight task result = %d, want 3", got)
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	p := New[int](4)

	var sum atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= 100; i++ {
				fut, err := p.Submit(func() (int, error) { return i, nil })
				if err != nil {
					t.Errorf("Submit() error = %v", err)
					return
				}
				fut.OnComplete(func(n int, _ error) { sum.Add(int64(n)) })
			}
		}()
	}
	wg.Wait()
	p.Shutdown(true)

	if got := sum.Load(); got != 4*5050 {
		t.Errorf("sum = %d, want %d", got, 4*5050)
	}
}
