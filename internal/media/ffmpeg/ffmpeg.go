package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// AudioSampleRate is the sample rate used for extracted analysis audio.
const AudioSampleRate = 44100

// ExtractAudio writes a mono WAV at AudioSampleRate for tempo estimation.
func ExtractAudio(ctx context.Context, binary, input, output string) error {
	if strings.TrimSpace(input) == "" || strings.TrimSpace(output) == "" {
		return errors.New("ffmpeg extract audio: input and output required")
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input, "-vn", "-ac", "1", "-ar", strconv.Itoa(AudioSampleRate), output}
	cmd := exec.CommandContext(ctx, resolve(binary), args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// FrameReader streams decoded RGB frames from a video through an ffmpeg pipe.
type FrameReader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	stderr *strings.Builder
	width  int
	height int
	buf    []byte
	index  int
}

// OpenFrames starts ffmpeg decoding input to raw rgb24 frames of the given size.
func OpenFrames(ctx context.Context, binary, input string, width, height int) (*FrameReader, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ffmpeg frames: invalid frame size %dx%d", width, height)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-an", "-sn",
		"-vsync", "passthrough",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, resolve(binary), args...)
	stderr := &strings.Builder{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg frames: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg frames: start: %w", err)
	}
	return &FrameReader{
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, width*height*3),
		stderr: stderr,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}, nil
}

// Next returns the next decoded frame and its zero-based source index.
// io.EOF marks the end of the stream.
func (r *FrameReader) Next() (image.Image, int, error) {
	if _, err := io.ReadFull(r.reader, r.buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("ffmpeg frames: read: %w", err)
	}
	idx := r.index
	r.index++
	return RGBToImage(r.buf, r.width, r.height), idx, nil
}

// Skip discards the next frame without converting it.
func (r *FrameReader) Skip() error {
	if _, err := r.reader.Discard(len(r.buf)); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("ffmpeg frames: skip: %w", err)
	}
	r.index++
	return nil
}

// Close stops ffmpeg and releases the pipe.
func (r *FrameReader) Close() error {
	_ = r.stdout.Close()
	err := r.cmd.Wait()
	if err != nil && r.cmd.ProcessState != nil && !r.cmd.ProcessState.Success() {
		// Closing the pipe early makes ffmpeg exit with a broken pipe; that is expected.
		if strings.Contains(r.stderr.String(), "Broken pipe") || r.stderr.Len() == 0 {
			return nil
		}
		return fmt.Errorf("ffmpeg frames: %w: %s", err, strings.TrimSpace(r.stderr.String()))
	}
	return nil
}

// RGBToImage converts packed rgb24 bytes into an RGBA image.
func RGBToImage(data []byte, width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(data) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = data[i]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

func resolve(binary string) string {
	if b := strings.TrimSpace(binary); b != "" {
		return b
	}
	return "ffmpeg"
}
