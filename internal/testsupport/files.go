package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is a minimal ftyp box so the file looks like an MP4 to sniffers.
var mp4Header = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00,
	'i', 's', 'o', 'm', 'm', 'p', '4', '1',
}

// WriteFile writes a placeholder video of exactly size bytes (at least one).
// Files large enough carry an MP4 ftyp header followed by filler.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	content := make([]byte, 0, size)
	if size >= int64(len(mp4Header)) {
		content = append(content, mp4Header...)
	}
	content = append(content, bytes.Repeat([]byte{0x42}, int(size)-len(content))...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
