package duplex

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConcat_Empty(t *testing.T) {
	assert.Equal(t, []byte{}, Concat())
}

func TestConcat_Single(t *testing.T) {
	x := []byte("abc")
	assert.Equal(t, x, Concat(x))
}

func TestConcat_PreservesLength(t *testing.T) {
	a, b, c := []byte("foo"), []byte("bar"), []byte("baz")
	out := Concat(a, b, c)
	assert.Equal(t, len(a)+len(b)+len(c), len(out))
	assert.Equal(t, "foobarbaz", string(out))
}

type fixedChunks struct {
	chunks [][]byte
	pos    int
}

func (f *fixedChunks) ReadChunk() ([]byte, error) {
	if f.pos >= len(f.chunks) {
		return nil, io.EOF
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}

func TestReadAtLeast_Success(t *testing.T) {
	r := &fixedChunks{chunks: [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")}}
	got, err := ReadAtLeast(r, 4)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(got), 4)
}

func TestReadAtLeast_ShortRead(t *testing.T) {
	r := &fixedChunks{chunks: [][]byte{[]byte("ab")}}
	_, err := ReadAtLeast(r, 10)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestSignal_FireIsIdempotentAndOneWay(t *testing.T) {
	s := NewSignal()
	assert.False(t, s.Fired())
	s.Fire()
	assert.True(t, s.Fired())
	s.Fire() // no panic, no second close
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done() to be closed after Fire")
	}
}
