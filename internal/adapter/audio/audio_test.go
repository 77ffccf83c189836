package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWav(t *testing.T, byteRate uint32, dataSize int) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16000))
	_ = binary.Write(&buf, binary.LittleEndian, byteRate)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	path := filepath.Join(t.TempDir(), "probe.wav")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestWavDurationFromHeader(t *testing.T) {
	t.Parallel()
	// 64000 bytes at 32000 bytes/s is two seconds
	path := writeWav(t, 32000, 64000)
	d, err := New().Duration(path)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, d, 0.001)
}

func TestWavDurationRejectsGarbage(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a riff header"), 0o644))
	_, err := New().Duration(path)
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0:59", FormatDuration(59))
	assert.Equal(t, "1:15", FormatDuration(75.4))
	assert.Equal(t, "1:01:01", FormatDuration(3661))
}
