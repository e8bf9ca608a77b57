package opus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// TranscodeError reports an FFmpeg run that exited unsuccessfully.
type TranscodeError struct {
	Command  string
	ExitCode int
	Stderr   string
}

var _ error = (*TranscodeError)(nil)

func (e *TranscodeError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Transcoder runs FFmpeg.
type Transcoder struct {
	// Path is the ffmpeg binary. Empty means "ffmpeg" from PATH.
	Path string
}

func (t Transcoder) path() string {
	if t.Path == "" {
		return "ffmpeg"
	}
	return t.Path
}

func rawPCMArgs() []string {
	return []string{
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
	}
}

// PCMToWAV converts a raw PCM file into a WAV container at out,
// overwriting it.
func (t Transcoder) PCMToWAV(ctx context.Context, in, out string) error {
	args := append(rawPCMArgs(), "-i", in, "-y", out)
	return t.run(ctx, args...)
}

func (t Transcoder) run(ctx context.Context, args ...string) error {
	ffmpeg := exec.CommandContext(ctx, t.path(), append([]string{"-hide_banner", "-loglevel", "error"}, args...)...)
	var stderr bytes.Buffer
	ffmpeg.Stderr = &stderr

	if err := ffmpeg.Run(); err != nil {
		return transcodeError(t.path(), err, &stderr)
	}
	return nil
}

func transcodeError(path string, err error, stderr *bytes.Buffer) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &TranscodeError{
			Command:  path,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return fmt.Errorf("run %s: %w", path, err)
}

// DecodeFile starts FFmpeg decoding the audio file at path and returns its
// raw PCM output. The caller must Close the reader to reap the process. A
// nonzero exit is reported as a *TranscodeError from Read or Close.
func (t Transcoder) DecodeFile(ctx context.Context, path string) (io.ReadCloser, error) {
	args := append([]string{"-i", path, "-vn"}, rawPCMArgs()...)
	ffmpeg := exec.CommandContext(ctx, t.path(), append([]string{"-hide_banner", "-loglevel", "error"}, append(args, "pipe:1")...)...)

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("unable to pipe output of ffmpeg to stdout: %w", err)
	}
	stderr := &bytes.Buffer{}
	ffmpeg.Stderr = stderr

	if err := ffmpeg.Start(); err != nil {
		return nil, fmt.Errorf("unable to start ffmpeg process: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		_, copyErr := io.Copy(pw, stdout)
		if err := ffmpeg.Wait(); err != nil {
			pw.CloseWithError(transcodeError(t.path(), err, stderr))
			return
		}
		pw.CloseWithError(copyErr)
	}()

	return &decodeCloser{ReadCloser: pr, cmd: ffmpeg}, nil
}

// decodeCloser wraps the pipe reader and makes sure the FFmpeg process is
// cleaned up.
type decodeCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (d *decodeCloser) Close() error {
	err := d.ReadCloser.Close()
	// Kill FFmpeg if it is still running, e.g. the reader stopped early.
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	return err
}
