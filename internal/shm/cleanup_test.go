package shm

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("fd accounting unavailable: %v", err)
	}
	return len(entries)
}

// mappings counts the regions of this process mapped from the segment.
func mappings(t *testing.T, name string) int {
	t.Helper()
	maps, err := os.ReadFile("/proc/self/maps")
	if err != nil {
		t.Skipf("mapping accounting unavailable: %v", err)
	}
	return strings.Count(string(maps), Path(name))
}

func failTruncate(t *testing.T) {
	orig := truncate
	truncate = func(int, int) error { return errors.New("forced ftruncate failure") }
	t.Cleanup(func() { truncate = orig })
}

func failMap(t *testing.T) {
	orig := mapRegion
	mapRegion = func(int, int, bool) ([]byte, error) { return nil, errors.New("forced mmap failure") }
	t.Cleanup(func() { mapRegion = orig })
}

func TestCreateFailureReleasesResources(t *testing.T) {
	tests := []struct {
		name string
		fail func(*testing.T)
		kind error
	}{
		{"size", failTruncate, ErrSegmentSize},
		{"map", failMap, ErrSegmentMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := testName(t)
			before := openFDs(t)
			tt.fail(t)

			pending, err := CreateOrRecover(name, SegmentSize)
			require.Error(t, err)
			assert.Nil(t, pending)
			assert.ErrorIs(t, err, tt.kind)

			_, statErr := os.Stat(Path(name))
			assert.True(t, os.IsNotExist(statErr), "name must be unlinked after a failed create")
			assert.Equal(t, before, openFDs(t), "no descriptor may leak")
		})
	}
}

func TestAttachFailureReleasesResources(t *testing.T) {
	t.Run("map", func(t *testing.T) {
		name := testName(t)
		createOwner(t, name)
		before := openFDs(t)
		failMap(t)

		_, err := AttachReadWrite(name, SegmentSize)
		assert.ErrorIs(t, err, ErrSegmentMap)
		assert.Equal(t, before, openFDs(t))

		_, statErr := os.Stat(Path(name))
		assert.NoError(t, statErr, "a failed attach never unlinks the owner's segment")
	})

	t.Run("invalid magic", func(t *testing.T) {
		name := testName(t)
		createOwner(t, name)

		f, err := os.OpenFile(Path(name), os.O_RDWR, 0)
		require.NoError(t, err)
		_, err = f.WriteAt([]byte{0xde, 0xad, 0xbe, 0xef}, OffsetMagic)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		fds, regions := openFDs(t), mappings(t, name)

		_, err = AttachReadOnly(name, SegmentSize)
		assert.ErrorIs(t, err, ErrInvalidMagic)
		assert.Equal(t, fds, openFDs(t))
		assert.Equal(t, regions, mappings(t, name), "the rejected mapping must be unmapped")
	})
}
