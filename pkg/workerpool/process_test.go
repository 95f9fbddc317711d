package workerpool

import (
	"bytes"
	"errors"
	"testing"
)

func TestProcessPool_Submit(t *testing.T) {
	p := NewProcessPool(2)
	defer p.Shutdown(true)

	p.Handle("upper", func(args []byte) ([]byte, error) {
		return bytes.ToUpper(args), nil
	})

	fut, err := p.Submit("upper", []byte("hello"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	got, err := fut.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if string(got) != "HELLO" {
		t.Errorf("result = %q, want %q", got, "HELLO")
	}
}

func TestProcessPool_UnknownHandler(t *testing.T) {
	p := NewProcessPool(1)
	defer p.Shutdown(true)

	if _, err := p.Submit("missing", nil); !errors.Is(err, ErrUnknownHandler) {
		t.Errorf("Submit() error = %v, want ErrUnknownHandler", err)
	}
}

func TestProcessPool_IsolatesArguments(t *testing.T) {
	p := NewProcessPool(1)

	started := make(chan struct{})
	release := make(chan struct{})
	p.Handle("echo", func(args []byte) ([]byte, error) {
		close(started)
		<-release
		return args, nil
	})

	args := []byte("abc")
	fut, err := p.Submit("echo", args)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	args[0] = 'X'
	close(release)

	got, _ := fut.Wait()
	if string(got) != "abc" {
		t.Errorf("handler observed caller mutation: %q", got)
	}
	p.Shutdown(true)
}

func TestProcessPool_HandlerError(t *testing.T) {
	p := NewProcessPool(1)
	defer p.Shutdown(true)

	boom := errors.New("boom")
	p.Handle("fail", func([]byte) ([]byte, error) { return nil, boom })

	fut, _ := p.Submit("fail", []byte("x"))
	if _, err := fut.Wait(); !errors.Is(err, boom) {
		t.Errorf("Wait() error = %v, want %v", err, boom)
	}
}

func TestProcessPool_ShutdownIdempotent(t *testing.T) {
	p := NewProcessPool(1)
	p.Handle("noop", func([]byte) ([]byte, error) { return nil, nil })

	p.Shutdown(true)
	p.Shutdown(true)

	if _, err := p.Submit("noop", nil); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Submit() after Shutdown error = %v, want ErrPoolClosed", err)
	}
}
