package bus

import (
	"context"
	"io"
	"sync"
)

// Record writes every message published on b to w, one JSON envelope per
// line, until stop is called. stop returns once every message published
// before it has been written, along with the first write error.
func Record(b *Bus, w io.Writer) (stop func() error) {
	sub := b.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		var werr error
		write := func(msg Message) {
			if werr != nil {
				return
			}
			line, err := Encode(msg)
			if err != nil {
				werr = err
				return
			}
			_, werr = w.Write(append(line, '\n'))
		}

		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				break
			}
			write(msg)
		}
		sub.Close()
		for {
			msg, ok := sub.TryNext()
			if !ok {
				break
			}
			write(msg)
		}
		done <- werr
	}()

	var once sync.Once
	var err error
	return func() error {
		once.Do(func() {
			cancel()
			err = <-done
		})
		return err
	}
}
