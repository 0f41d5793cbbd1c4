package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_FIFO(t *testing.T) {
	m := newMailbox()

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, m.enqueue(SuiteReady{TestID: id}))
	}

	for _, want := range []string{"A", "B", "C"} {
		msg, ok := m.tryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, msg.(SuiteReady).TestID)
	}

	_, ok := m.tryDequeue()
	assert.False(t, ok, "dequeue from empty mailbox should return false")
}

func TestMailbox_SignalCoalesces(t *testing.T) {
	m := newMailbox()

	m.enqueue(ClientPing{})
	m.enqueue(ClientPing{})

	select {
	case <-m.wait():
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-m.wait():
		t.Fatal("signals should coalesce into one")
	default:
	}
	assert.Equal(t, 2, m.len())
}

func TestMailbox_CloseWakesWaiter(t *testing.T) {
	m := newMailbox()

	done := make(chan struct{})
	go func() {
		<-m.wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	m.close()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("waiter did not wake after close")
	}
	assert.False(t, m.enqueue(ClientPing{}), "enqueue after close should return false")
}

func TestMailbox_DrainAfterClose(t *testing.T) {
	m := newMailbox()
	m.enqueue(RootEnd{})
	m.close()

	msg, ok := m.tryDequeue()
	require.True(t, ok)
	assert.Equal(t, TypeRootEnd, msg.Type())
}
