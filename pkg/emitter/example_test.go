package emitter_test

import (
	"fmt"
	"time"

	"github.com/jittakal/bufemit/pkg/backend"
	"github.com/jittakal/bufemit/pkg/emitter"
)

func Example() {
	// Emit every 21 bytes, carrying the overflow into the next buffer
	e, err := emitter.New[[]byte, int](
		func(p emitter.Payload[[]byte], _ time.Time) (int, error) {
			fmt.Printf("cycle %d: %s\n", p.Seq(), p.Value())
			return p.Len(), nil
		},
		backend.BytesFactory(64),
		emitter.Options[[]byte, int]{
			Size:      21,
			SendValue: true,
			Clip:      true,
			OnDone: func(n int, err error) {
				fmt.Printf("done: %d bytes, err=%v\n", n, err)
			},
		},
	)
	if err != nil {
		fmt.Println("Error creating emitter:", err)
		return
	}
	defer e.Close()

	for _, letter := range []string{"A", "B", "C"} {
		_ = e.Write([]byte(letter + letter + letter + letter + letter + letter + letter + letter))
	}
	fmt.Printf("carried: %d bytes\n", e.Len())

	// Output:
	// cycle 1: AAAAAAAABBBBBBBBCCCCC
	// done: 21 bytes, err=<nil>
	// carried: 3 bytes
}

func Example_threadPool() {
	results := make(chan int, 4)

	e, err := emitter.New[[]string, int](
		func(p emitter.Payload[[]string], _ time.Time) (int, error) {
			return len(p.Value()), nil
		},
		backend.ListFactory[string](8),
		emitter.Options[[]string, int]{
			Size:     2,
			Mode:     emitter.ModeThread,
			PoolSize: 2,
			OnDone: func(n int, err error) {
				if err == nil {
					results <- n
				}
			},
		},
	)
	if err != nil {
		fmt.Println("Error creating emitter:", err)
		return
	}

	_ = e.Write([]string{"a", "b"})
	_ = e.Write([]string{"c", "d", "e"})
	_ = e.Close()
	close(results)

	total := 0
	for n := range results {
		total += n
	}
	fmt.Printf("records emitted: %d\n", total)

	// Output:
	// records emitted: 5
}
