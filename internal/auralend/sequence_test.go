package auralend

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentSequence(t *testing.T) {
	genesis := int64(1700000000)

	sequence, err := CurrentSequence(time.Unix(genesis+90, 0), genesis, 15)
	require.Nil(t, err)
	assert.Equal(t, uint64(6), sequence)

	_, err = CurrentSequence(time.Unix(genesis, 0), genesis, 0)
	require.NotNil(t, err)
}

func TestSequencesPerYear(t *testing.T) {
	assert.Equal(t, uint64(SecondsPerYear), SequencesPerYear(1))
	assert.Equal(t, uint64(SecondsPerYear/15), SequencesPerYear(15))
	assert.Equal(t, uint64(0), SequencesPerYear(0))
}
