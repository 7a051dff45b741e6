// Package transcode converts media buffers between the legacy client's
// codecs and the backend's by shelling out to ffmpeg. Every conversion
// is a job with its own id; all temporary artifacts carry the job id in
// their path and are reconciled on every exit path.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/whatsappx/wsplbridge/internal/config"
)

// ErrTranscode indicates the external transcoder failed; the wrapped
// message carries its stderr.
var ErrTranscode = errors.New("media transcode failed")

// Transcoder runs ffmpeg jobs against a temp directory.
type Transcoder struct {
	logger     *slog.Logger
	ffmpegPath string
	tempDir    string
}

func New(log *slog.Logger, cfg config.MediaConfig) *Transcoder {
	if log == nil {
		log = slog.Default()
	}
	ffmpegPath := cfg.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = config.DefaultFFmpegPath
	}
	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Transcoder{
		logger:     log.With(slog.String("component", "transcode")),
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
	}
}

// job tracks the temporary artifacts of one conversion.
type job struct {
	t  *Transcoder
	id string

	mu        sync.Mutex
	artifacts []string
	cleaned   bool
}

func (t *Transcoder) newJob() *job {
	return &job{t: t, id: uuid.NewString()}
}

// path allocates an artifact path unique to this job and records it
// for cleanup.
func (j *job) path(name string) string {
	p := filepath.Join(j.t.tempDir, "wspl-"+j.id+"-"+name)
	j.mu.Lock()
	j.artifacts = append(j.artifacts, p)
	j.mu.Unlock()
	return p
}

// cleanup removes every recorded artifact exactly once.
func (j *job) cleanup() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cleaned {
		return
	}
	j.cleaned = true
	for _, p := range j.artifacts {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			j.t.logger.Warn("artifact removal failed",
				slog.String("path", p), slog.Any("error", err))
		}
	}
}

// Output is a finished conversion. Closing it removes the job's
// artifacts; Close is idempotent and must be called on every path.
type Output struct {
	Path        string
	ContentType string

	job *job
}

// Open returns a reader over the converted artifact.
func (o *Output) Open() (io.ReadCloser, error) {
	return os.Open(o.Path)
}

// Close reconciles the job's temporary artifacts.
func (o *Output) Close() error {
	o.job.cleanup()
	return nil
}

// writeInput spools the input buffer to a job-scoped file, naming it by
// its sniffed type.
func (j *job) writeInput(data []byte) (string, error) {
	ext := mimetype.Detect(data).Extension()
	if ext == "" {
		ext = ".bin"
	}
	p := j.path("input" + ext)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", err
	}
	return p, nil
}

func (t *Transcoder) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: %s", ErrTranscode, msg)
	}
	return nil
}

// AudioToMP3 converts an audio buffer to mp3 for the legacy client's
// player.
func (t *Transcoder) AudioToMP3(ctx context.Context, input []byte) (*Output, error) {
	j := t.newJob()
	in, err := j.writeInput(input)
	if err != nil {
		j.cleanup()
		return nil, err
	}
	out := j.path("audio.mp3")
	if err := t.run(ctx, []string{"-y", "-i", in, "-acodec", "libmp3lame", out}); err != nil {
		j.cleanup()
		return nil, err
	}
	return &Output{Path: out, ContentType: "audio/mpeg", job: j}, nil
}

// VoiceNoteToOgg converts a recorded voice note to the opus encoding
// the backend expects. The result is small, so it is returned in full
// and the artifacts are reconciled before returning.
func (t *Transcoder) VoiceNoteToOgg(ctx context.Context, input []byte) ([]byte, error) {
	j := t.newJob()
	defer j.cleanup()
	in, err := j.writeInput(input)
	if err != nil {
		return nil, err
	}
	out := j.path("voice.ogg")
	args := []string{"-y", "-i", in, "-c:a", "libopus", "-b:a", "32k", "-ac", "1", out}
	if err := t.run(ctx, args); err != nil {
		return nil, err
	}
	return os.ReadFile(out)
}

// VideoToQuickTime re-encodes a video for the legacy client: bounded
// 640x480, 30 fps, deinterlaced, h264/aac, container laid out for
// streaming.
func (t *Transcoder) VideoToQuickTime(ctx context.Context, input []byte) (*Output, error) {
	j := t.newJob()
	in, err := j.writeInput(input)
	if err != nil {
		j.cleanup()
		return nil, err
	}
	out := j.path("video.mov")
	args := []string{
		"-y", "-i", in,
		"-vf", "scale='min(640,iw)':'min(480,ih)':force_original_aspect_ratio=decrease,fps=30,yadif",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-b:a", "160k", "-ar", "48000", "-ac", "2",
		"-movflags", "+faststart",
		out,
	}
	if err := t.run(ctx, args); err != nil {
		j.cleanup()
		return nil, err
	}
	return &Output{Path: out, ContentType: "video/quicktime", job: j}, nil
}

// VideoThumbnail captures the first frame of a video as a png.
func (t *Transcoder) VideoThumbnail(ctx context.Context, input []byte) (*Output, error) {
	j := t.newJob()
	in, err := j.writeInput(input)
	if err != nil {
		j.cleanup()
		return nil, err
	}
	out := j.path("thumb.png")
	args := []string{"-y", "-i", in, "-vf", "thumbnail,scale=320:240", "-frames:v", "1", out}
	if err := t.run(ctx, args); err != nil {
		j.cleanup()
		return nil, err
	}
	return &Output{Path: out, ContentType: "image/png", job: j}, nil
}
