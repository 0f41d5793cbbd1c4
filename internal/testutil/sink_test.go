package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordingSink(t *testing.T) {
	sink := NewRecordingSink()
	assert.Equal(t, "", sink.Text())

	sink.Append("TAP Version 14", "# a\n# b")
	sink.Append("1..0")

	assert.Equal(t, []string{"TAP Version 14", "# a\n# b", "1..0"}, sink.Lines())
	assert.Equal(t, "TAP Version 14\n# a\n# b\n1..0\n", sink.Text())
}

func TestRecordingSink_WaitFor(t *testing.T) {
	sink := NewRecordingSink()
	go func() {
		time.Sleep(10 * time.Millisecond)
		sink.Append("Bail out!")
	}()

	assert.True(t, sink.WaitFor(func(line string) bool {
		return strings.HasPrefix(line, "Bail out!")
	}, time.Second))
	assert.False(t, sink.WaitFor(func(line string) bool { return line == "never" }, 20*time.Millisecond))
}
