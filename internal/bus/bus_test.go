package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_BroadcastIncludingPublisher(t *testing.T) {
	b := New()
	publisher := b.Subscribe()
	other := b.Subscribe()

	require.NoError(t, b.Publish(SuiteReady{TestID: "t1"}))

	for _, sub := range []*Subscription{publisher, other} {
		msg, ok := sub.TryNext()
		require.True(t, ok)
		assert.Equal(t, SuiteReady{TestID: "t1"}, msg)
	}
}

func TestBus_SameOrderForEverySubscriber(t *testing.T) {
	b := New()
	subs := []*Subscription{b.Subscribe(), b.Subscribe(), b.Subscribe()}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				assert.NoError(t, b.Publish(SuiteResult{ItID: string(rune('a'+i)) + string(rune('0'+j%10)), OK: true}))
			}
		}(i)
	}
	wg.Wait()

	drain := func(sub *Subscription) []Message {
		var out []Message
		for {
			msg, ok := sub.TryNext()
			if !ok {
				return out
			}
			out = append(out, msg)
		}
	}
	first := drain(subs[0])
	require.Len(t, first, 100)
	for _, sub := range subs[1:] {
		assert.Equal(t, first, drain(sub))
	}
}

func TestBus_PublishValidates(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	err := b.Publish(RegisterIt{ItID: "it1"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, sub.Len())
}

func TestBus_UnsubscribedReceivesNothing(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	sub.Close()

	require.NoError(t, b.Publish(ClientPing{}))
	assert.Equal(t, 0, sub.Len())
	assert.True(t, sub.Closed())
}

func TestBus_NextBlocksUntilPublish(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	got := make(chan Message, 1)
	go func() {
		msg, err := sub.Next(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Publish(RootEnd{}))

	select {
	case msg := <-got:
		assert.Equal(t, RootEnd{}, msg)
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock")
	}
}

func TestBus_NextHonorsContext(t *testing.T) {
	b := New()
	sub := b.Subscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBus_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	require.NoError(t, b.Publish(RootEnd{}))
	b.Close()

	msg, err := sub.Next(context.Background())
	require.NoError(t, err, "queued messages stay readable")
	assert.Equal(t, RootEnd{}, msg)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Publish(ClientPing{}), ErrClosed)
	assert.True(t, b.Subscribe().Closed())
}
