package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidLevel(t *testing.T) {
	logger, err := New("host", "debug", "N1")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New("host", "deafening", "N1")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NotNil(t, Nop())
}
