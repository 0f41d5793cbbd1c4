package suite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/ident"
)

func TestRegistry_Load(t *testing.T) {
	r := NewRegistry()
	r.Register("/test/index.html", func(*Suite) {})

	_, err := r.Load("http://localhost/test/index.html?x-test-name=foo#frag")
	require.NoError(t, err)

	_, err = r.Load("http://localhost/test/missing.html")
	require.ErrorIs(t, err, ErrPageNotFound)
	assert.Contains(t, err.Error(), "missing.html")
}

func TestHost_OpenReplacesPreviousContext(t *testing.T) {
	b := bus.New()
	defer b.Close()
	sub := b.Subscribe()

	r := NewRegistry()
	r.Register("/a.html", func(s *Suite) { s.It("in a", pass) })
	r.Register("/b.html", func(s *Suite) { s.It("in b", pass) })

	h := NewHost(b, r, WithIDs(ident.NewSequence("id")))
	defer h.Close()
	ctx := context.Background()

	require.NoError(t, h.Open(ctx, "ta", "http://localhost/a.html"))
	first := h.live()
	require.NotNil(t, first)
	next(t, sub)
	assert.Equal(t, bus.SuiteReady{TestID: "ta"}, next(t, sub))

	require.NoError(t, h.Open(ctx, "tb", "http://localhost/b.html"))
	assert.NotSame(t, first, h.live())
	assert.Equal(t, "tb", h.live().testID)
	assert.Eventually(t, first.sub.Closed, time.Second, 5*time.Millisecond)

	err := h.Open(ctx, "tc", "http://localhost/c.html")
	require.ErrorIs(t, err, ErrPageNotFound)
	assert.Nil(t, h.live())
}
