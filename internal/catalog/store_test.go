package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutAllDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ArtistProfile{ID: 1, Name: "Ada", ImageURLs: []string{"http://x/1.png"}}))
	require.NoError(t, s.Put(ArtistProfile{ID: 2, Name: "Bea", ImageURLs: []string{"http://x/2.png"}}))

	all, err := s.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Delete(1))
	all, err = s.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, int64(2), all[0].ID)
}
