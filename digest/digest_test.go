package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeAndVerify(t *testing.T) {
	data := []byte("hello chunk")

	for _, algo := range []Algorithm{Blake3, Sha256} {
		d := Compute(algo, data)
		assert.False(t, d.IsEmpty())
		assert.True(t, Verify(algo, d, data))
		assert.False(t, Verify(algo, d, append(append([]byte{}, data...), 'x')))
	}
}

func TestDigestString(t *testing.T) {
	d := Compute(Blake3, []byte("x"))
	assert.Len(t, d.String(), 64)
}

func TestAlgorithmString(t *testing.T) {
	assert.Equal(t, "blake3", Blake3.String())
	assert.Equal(t, "sha256", Sha256.String())
	assert.Equal(t, "unknown", Algorithm(99).String())
}
