package cmd

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyReaderReadsFirstKeyOfLine(t *testing.T) {
	keys := newKeyReader(strings.NewReader("\n  4 trailing\nnext\n"))
	require.False(t, keys.terminal)

	key, err := keys.ReadKey()
	require.NoError(t, err)
	assert.Equal(t, byte('4'), key)

	require.NoError(t, keys.WaitKey())
	assert.ErrorIs(t, keys.WaitKey(), io.EOF)
	assert.NoError(t, keys.Close())
}

func TestKeyReaderWithoutTrailingNewline(t *testing.T) {
	keys := newKeyReader(strings.NewReader("6"))
	key, err := keys.ReadKey()
	require.NoError(t, err)
	assert.Equal(t, byte('6'), key)

	_, err = keys.ReadKey()
	assert.ErrorIs(t, err, io.EOF)
}
