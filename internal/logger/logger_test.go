package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log, err := New(Config{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
