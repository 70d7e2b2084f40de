package files

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, Exists(dir))
	filePath := filepath.Join(dir, "model.json")
	assert.False(t, Exists(filePath))
	require.NoError(t, os.WriteFile(filePath, []byte("{}"), 0644))
	assert.True(t, Exists(filePath))

	size, err := SizeOf(filePath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
	_, err = SizeOf(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestReplaceTildeInDir(t *testing.T) {
	usr, err := user.Current()
	require.NoError(t, err)

	for _, tc := range []struct {
		in, want string
	}{
		{"", ""},
		{"/tmp/model.json", "/tmp/model.json"},
		{"relative/model.json", "relative/model.json"},
		{"~", usr.HomeDir},
		{"~/models/x.bpe", filepath.Join(usr.HomeDir, "models/x.bpe")},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ReplaceTildeInDir(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err = ReplaceTildeInDir("~surely-not-a-user-name-xyz/models")
	assert.Error(t, err)
}
