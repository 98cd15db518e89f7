package modelfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blocks struct {
	Kind    string    `json:"kind"`
	Nodes   []float64 `json:"nodes"`
	Subsets []uint32  `json:"subsets"`
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	original := blocks{Kind: "dtrees", Nodes: []float64{1.5, -2, 3}, Subsets: []uint32{5, 1 << 31}}

	for _, name := range []string{"model.json", "model.json.zst", "model.json.lz4"} {
		filename := filepath.Join(dir, name)
		require.NoError(t, Save(filename, original), name)

		var loaded blocks
		require.NoError(t, Load(filename, &loaded), name)
		assert.Equal(t, original, loaded, name)
	}

	plain, err := os.ReadFile(filepath.Join(dir, "model.json"))
	require.NoError(t, err)
	assert.Contains(t, string(plain), `"kind": "dtrees"`)

	compressed, err := os.ReadFile(filepath.Join(dir, "model.json.zst"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, compressed[:4])
}

func TestLoadMissingFile(t *testing.T) {
	var loaded blocks
	assert.Error(t, Load(filepath.Join(t.TempDir(), "absent.json"), &loaded))
}
