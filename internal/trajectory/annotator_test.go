package trajectory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCheckpoints_PlainArray(t *testing.T) {
	got, err := parseCheckpoints(`[{"index":0,"description":"opened the site"},{"index":2,"description":"submitted the form"}]`, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 0, got[0].Index)
	require.Equal(t, "submitted the form", got[1].Description)
}

func TestParseCheckpoints_MarkdownFence(t *testing.T) {
	content := "```json\n[{\"index\":1,\"description\":\"searched\"}]\n```"
	got, err := parseCheckpoints(content, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, got[0].Index)
}

func TestParseCheckpoints_OutOfRangeDropped(t *testing.T) {
	got, err := parseCheckpoints(`[{"index":-1,"description":"a"},{"index":7,"description":"b"},{"index":1,"description":"c"}]`, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "c", got[0].Description)
}

func TestParseCheckpoints_Garbage(t *testing.T) {
	_, err := parseCheckpoints("I could not produce checkpoints.", 2)
	require.Error(t, err)
}
