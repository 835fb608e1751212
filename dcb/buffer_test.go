package dcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferChain_AppendBytesAndConsume(t *testing.T) {
	c := NewBufferChain()
	assert.True(t, c.Empty())

	c.AppendBytes([]byte("hello"))
	c.AppendBytes([]byte(" world"))
	require.Equal(t, 11, c.Len())
	assert.Equal(t, 2, c.Segments())

	assert.Equal(t, "hello world", string(c.Bytes()))
	assert.True(t, c.Empty())
}

func TestBufferChain_AppendBytesCopiesInput(t *testing.T) {
	p := []byte("abc")
	c := NewBufferChain()
	c.AppendBytes(p)
	p[0] = 'z'
	assert.Equal(t, "abc", string(c.Bytes()))
}

func TestBufferChain_AppendEmptyIsNoop(t *testing.T) {
	c := NewBufferChain()
	c.AppendBytes(nil)
	assert.True(t, c.Empty())
	assert.Equal(t, 0, c.Segments())
}

// TestBufferChain_Append models spec S2: writeq already holds 5 bytes,
// write(3 bytes) appends rather than sending, leaving writeq at 8.
func TestBufferChain_Append(t *testing.T) {
	writeq := NewBufferChain()
	writeq.AppendBytes([]byte("abcde"))

	incoming := NewBufferChain()
	incoming.AppendBytes([]byte("fgh"))

	writeq.Append(incoming)

	assert.Equal(t, 8, writeq.Len())
	assert.True(t, incoming.Empty(), "Append must drain the source chain")
	assert.Equal(t, "abcdefgh", string(writeq.Bytes()))
}

func TestBufferChain_AppendNilOrEmptyOther(t *testing.T) {
	writeq := NewBufferChain()
	writeq.AppendBytes([]byte("abc"))
	writeq.Append(nil)
	writeq.Append(NewBufferChain())
	assert.Equal(t, 3, writeq.Len())
}

func TestBufferChain_ConsumePartial(t *testing.T) {
	c := NewBufferChain()
	c.AppendBytes([]byte("0123456789"))

	var got []byte
	n := c.Consume(4, func(p []byte) { got = append(got, p...) })
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(got))
	assert.Equal(t, 6, c.Len())
	assert.Equal(t, "456789", string(c.Bytes()))
}

func TestBufferChain_ConsumeAcrossSegments(t *testing.T) {
	c := NewBufferChain()
	c.AppendBytes([]byte("ab"))
	c.AppendBytes([]byte("cd"))
	c.AppendBytes([]byte("ef"))
	require.Equal(t, 3, c.Segments())

	var got []byte
	n := c.Consume(5, func(p []byte) { got = append(got, p...) })
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", string(got))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "f", string(c.Bytes()))
}

func TestBufferChain_ConsumeMoreThanAvailable(t *testing.T) {
	c := NewBufferChain()
	c.AppendBytes([]byte("xy"))
	n := c.Consume(100, func([]byte) {})
	assert.Equal(t, 2, n)
	assert.True(t, c.Empty())
}

func TestBufferChain_Front(t *testing.T) {
	c := NewBufferChain()
	assert.Nil(t, c.Front())

	c.AppendBytes([]byte("ab"))
	c.AppendBytes([]byte("cd"))
	assert.Equal(t, "ab", string(c.Front()), "Front must expose only the head segment")

	c.Consume(1, nil)
	assert.Equal(t, "b", string(c.Front()), "Front must reflect the consumed offset")
}

func TestBufferChain_DrainEmptyChainIsNoop(t *testing.T) {
	c := NewBufferChain()
	n := c.Consume(10, func([]byte) { t.Fatal("fn must not be called on empty chain") })
	assert.Equal(t, 0, n)
}

// TestBufferChain_SegmentingMatchesCeilDivision models spec §4.4's
// boundary behaviour: available bytes > MAX_SEGMENT must yield exactly
// ceil(avail / MAX_SEGMENT) segments when sized the way the read path
// sizes them (min(remaining, segment size) per segment, reproduced inline
// here).
func TestBufferChain_SegmentingMatchesCeilDivision(t *testing.T) {
	c := NewBufferChain()
	const segSize = 4
	total := 10 // ceil(10/4) == 3 segments: 4, 4, 2
	remaining := total
	for remaining > 0 {
		n := segSize
		if n > remaining {
			n = remaining
		}
		buf := make([]byte, n)
		c.appendSegmentBuf(buf, n)
		remaining -= n
	}
	assert.Equal(t, 3, c.Segments())
	assert.Equal(t, total, c.Len())
}
