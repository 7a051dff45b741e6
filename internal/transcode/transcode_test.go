package transcode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/whatsappx/wsplbridge/internal/config"
)

// stubFFmpeg writes a shell script standing in for ffmpeg. The real
// binary is never invoked in tests.
func stubFFmpeg(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub transcoder script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

const stubOK = `#!/bin/sh
for last; do :; done
printf 'converted' > "$last"
exit 0
`

const stubFail = `#!/bin/sh
echo "conversion exploded" >&2
exit 1
`

func newTestTranscoder(t *testing.T, script string) (*Transcoder, string) {
	t.Helper()
	tempDir := t.TempDir()
	tr := New(nil, config.MediaConfig{
		FFmpegPath: stubFFmpeg(t, script),
		TempDir:    tempDir,
	})
	return tr, tempDir
}

func tempFileCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	return len(entries)
}

func TestAudioToMP3Success(t *testing.T) {
	t.Parallel()

	tr, tempDir := newTestTranscoder(t, stubOK)

	out, err := tr.AudioToMP3(context.Background(), []byte("oggdata"))
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if out.ContentType != "audio/mpeg" {
		t.Fatalf("content type = %q", out.ContentType)
	}

	reader, err := out.Open()
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "converted" {
		t.Fatalf("output = %q", data)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("close output: %v", err)
	}
	if n := tempFileCount(t, tempDir); n != 0 {
		t.Fatalf("%d artifacts left after close", n)
	}
	// Close must be idempotent.
	if err := out.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestTranscodeFailureCleansArtifacts(t *testing.T) {
	t.Parallel()

	tr, tempDir := newTestTranscoder(t, stubFail)

	_, err := tr.AudioToMP3(context.Background(), []byte("oggdata"))
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, ErrTranscode) {
		t.Fatalf("error = %v, want ErrTranscode", err)
	}
	if got := err.Error(); !strings.Contains(got, "conversion exploded") {
		t.Fatalf("error does not carry stderr: %q", got)
	}
	if n := tempFileCount(t, tempDir); n != 0 {
		t.Fatalf("%d artifacts left after failure", n)
	}
}

func TestVoiceNoteToOgg(t *testing.T) {
	t.Parallel()

	tr, tempDir := newTestTranscoder(t, stubOK)

	data, err := tr.VoiceNoteToOgg(context.Background(), []byte("cafdata"))
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if string(data) != "converted" {
		t.Fatalf("output = %q", data)
	}
	if n := tempFileCount(t, tempDir); n != 0 {
		t.Fatalf("%d artifacts left behind", n)
	}
}

func TestVideoFlowsContentTypes(t *testing.T) {
	t.Parallel()

	tr, tempDir := newTestTranscoder(t, stubOK)

	mov, err := tr.VideoToQuickTime(context.Background(), []byte("mp4data"))
	if err != nil {
		t.Fatalf("video transcode: %v", err)
	}
	if mov.ContentType != "video/quicktime" {
		t.Fatalf("video content type = %q", mov.ContentType)
	}
	_ = mov.Close()

	thumb, err := tr.VideoThumbnail(context.Background(), []byte("mp4data"))
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if thumb.ContentType != "image/png" {
		t.Fatalf("thumbnail content type = %q", thumb.ContentType)
	}
	_ = thumb.Close()

	if n := tempFileCount(t, tempDir); n != 0 {
		t.Fatalf("%d artifacts left behind", n)
	}
}

// ConcurrentJobsDoNotCollide guards the corrected shared-filename
// defect: two jobs running at once must never touch the same paths.
func TestConcurrentJobsDoNotCollide(t *testing.T) {
	t.Parallel()

	tr, tempDir := newTestTranscoder(t, stubOK)

	const n = 8
	outs := make(chan *Output, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			out, err := tr.AudioToMP3(context.Background(), []byte("oggdata"))
			if err != nil {
				errs <- err
				return
			}
			outs <- out
		}()
	}

	paths := map[string]bool{}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			t.Fatalf("job failed: %v", err)
		case out := <-outs:
			if paths[out.Path] {
				t.Fatalf("duplicate output path %q", out.Path)
			}
			paths[out.Path] = true
			_ = out.Close()
		}
	}

	if n := tempFileCount(t, tempDir); n != 0 {
		t.Fatalf("%d artifacts left behind", n)
	}
}
