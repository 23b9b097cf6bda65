package gdbforge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReleaseIndex(t *testing.T) {
	data := []byte(`[
  {"target": "linux-intel", "gdb_version": "15.2",
   "filename": "avr-gdb-15.2-linux-intel.tar.zst",
   "b3sum": "abc123", "size": 1024, "date": "2026-08-01"}
]`)
	entries, err := parseReleaseIndex(data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "linux-intel", entries[0].Target)
	assert.Equal(t, "15.2", entries[0].GDBVersion)
	assert.Equal(t, "abc123", entries[0].B3Sum)

	_, err = parseReleaseIndex([]byte("not json"))
	assert.Error(t, err)
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "512 B", humanReadableSize(512))
	assert.Equal(t, "1.0 KiB", humanReadableSize(1024))
	assert.Equal(t, "2.5 MiB", humanReadableSize(5*1024*1024/2))
	assert.Equal(t, "1.0 GiB", humanReadableSize(1024*1024*1024))
}
