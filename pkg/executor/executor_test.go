package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLastLine(t *testing.T) {
	require.Equal(t, "error: model not found", lastLine("loading\nerror: model not found"))
	require.Equal(t, "single", lastLine("single"))
}

func TestExecuteMissingBinary(t *testing.T) {
	_, err := New().Execute(context.Background(), "callnotes-binary-that-does-not-exist")
	require.Error(t, err)
	require.Contains(t, err.Error(), "callnotes-binary-that-does-not-exist")
}
