package filestore

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounterDoc(t *testing.T) *Document[map[string]int] {
	t.Helper()
	doc, err := NewDocument(filepath.Join(t.TempDir(), "nested", "counters.json"), func() map[string]int {
		return map[string]int{}
	})
	require.NoError(t, err)
	return doc
}

func TestDocument_ReadMissingFileReturnsZero(t *testing.T) {
	doc := newCounterDoc(t)

	v, err := doc.Read()
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestDocument_UpdatePersists(t *testing.T) {
	doc := newCounterDoc(t)

	err := doc.Update(func(v *map[string]int) error {
		(*v)["a"] = 3
		return nil
	})
	require.NoError(t, err)

	reopened, err := NewDocument(doc.path, func() map[string]int { return map[string]int{} })
	require.NoError(t, err)
	v, err := reopened.Read()
	require.NoError(t, err)
	assert.Equal(t, 3, v["a"])
}

func TestDocument_UpdateErrorDiscardsChanges(t *testing.T) {
	doc := newCounterDoc(t)
	boom := errors.New("boom")

	err := doc.Update(func(v *map[string]int) error {
		(*v)["a"] = 1
		return boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := doc.Read()
	require.NoError(t, err)
	assert.NotContains(t, v, "a")
}

func TestDocument_ConcurrentUpdatesAreSerialized(t *testing.T) {
	doc := newCounterDoc(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = doc.Update(func(v *map[string]int) error {
				(*v)["n"]++
				return nil
			})
		}()
	}
	wg.Wait()

	v, err := doc.Read()
	require.NoError(t, err)
	assert.Equal(t, 20, v["n"])
}
