package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarFactoryWritesDescription(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBarFactory(&buf)(2, "train")

	require.NoError(t, bar.Add(1))
	require.NoError(t, bar.Add(1))
	require.NoError(t, bar.Finish())
	assert.Contains(t, buf.String(), "train")
}

func TestNop(t *testing.T) {
	p := Nop(10, "ignored")
	assert.NoError(t, p.Add(3))
	assert.NoError(t, p.Finish())
}
