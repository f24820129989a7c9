package browser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/josancamon19/web-environments/internal/entity"
)

func TestStorageSeedScriptFor_EmptySnapshot(t *testing.T) {
	src, err := StorageSeedScriptFor(nil)
	require.NoError(t, err)
	require.Empty(t, src, "nothing to seed means nothing to install")
}

func TestStorageSeedScriptFor_OriginMatched(t *testing.T) {
	origins := []entity.OriginStorage{
		{
			Origin:  "https://app.example.com",
			Local:   map[string]string{"auth_token": "tok-123"},
			Session: map[string]string{"tab": "settings"},
		},
		{
			Origin: "https://other.example.com",
			Local:  map[string]string{"seen": "1"},
		},
	}

	src, err := StorageSeedScriptFor(origins)
	require.NoError(t, err)

	// The bootstrap gates on the document's own origin so a multi-origin
	// snapshot never leaks keys across sites.
	require.Contains(t, src, "location.origin")
	require.Contains(t, src, "https://app.example.com")
	require.Contains(t, src, "https://other.example.com")

	// The snapshot rides along as the exact JSON the entity types produce.
	data, err := json.Marshal(origins)
	require.NoError(t, err)
	require.Contains(t, src, string(data))
}

func TestStorageSeedScriptFor_EscapesValues(t *testing.T) {
	origins := []entity.OriginStorage{
		{
			Origin: "https://app.example.com",
			Local:  map[string]string{"note": `quote " and </script> and \ backslash`},
		},
	}

	src, err := StorageSeedScriptFor(origins)
	require.NoError(t, err)

	// json.Marshal escaping keeps hostile values inert inside the script.
	require.NotContains(t, src, `"note":"quote " and`)
	require.Contains(t, src, `\"`)

	const prefix = "const origins = "
	start := strings.Index(src, prefix)
	require.True(t, start >= 0)
	start += len(prefix)
	end := strings.Index(src[start:], ";\n")
	require.True(t, end > 0, "marshaled snapshot is a single compact line")

	var parsed []entity.OriginStorage
	require.NoError(t, json.Unmarshal([]byte(src[start:start+end]), &parsed))
	require.Equal(t, origins[0].Local["note"], parsed[0].Local["note"])
}
