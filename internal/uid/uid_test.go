package uid

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerator_New(t *testing.T) {
	g := New()

	a, err := g.New("1.2.3.4", 37015, "secret")
	require.NoError(t, err)
	b, err := g.New("1.2.3.4", 37015, "secret")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Regexp(t, `^[0-9A-F]{64}$`, a)
	assert.NotEqual(t, a, b, "salt must make identifiers differ")
}

func TestGenerator_Deterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, SaltSize)

	a, err := NewWithReader(bytes.NewReader(salt)).New("1.2.3.4", 1, "k")
	require.NoError(t, err)
	b, err := NewWithReader(bytes.NewReader(salt)).New("1.2.3.4", 1, "k")
	require.NoError(t, err)
	c, err := NewWithReader(bytes.NewReader(salt)).New("1.2.3.4", 2, "k")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGenerator_EntropyFailure(t *testing.T) {
	_, err := NewWithReader(failingReader{}).New("1.2.3.4", 1, "k")
	assert.ErrorIs(t, err, ErrEntropy)

	_, err = NewWithReader(bytes.NewReader([]byte{1, 2, 3})).New("1.2.3.4", 1, "k")
	assert.ErrorIs(t, err, ErrEntropy)
}
