package opus

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSource opens audio artifacts as PCM streams.
type FileSource struct {
	Transcoder Transcoder
	// NewDecoder builds the codec for Ogg Opus files. Nil means NewDecoder
	// from this package.
	NewDecoder func() (PacketDecoder, error)
}

// Open returns the PCM content of the file at path. Ogg Opus files are
// demuxed and decoded in process; anything else goes through FFmpeg.
func (s FileSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg", ".opus":
		return s.openOgg(path)
	default:
		return s.Transcoder.DecodeFile(ctx, path)
	}
}

func (s FileSource) openOgg(path string) (io.ReadCloser, error) {
	newDecoder := s.NewDecoder
	if newDecoder == nil {
		newDecoder = func() (PacketDecoder, error) { return NewDecoder() }
	}
	dec, err := newDecoder()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &oggFile{ReadCloser: DecodeOgg(f, dec), file: f}, nil
}

type oggFile struct {
	io.ReadCloser
	file *os.File
}

func (o *oggFile) Close() error {
	err := o.ReadCloser.Close()
	if ferr := o.file.Close(); err == nil {
		err = ferr
	}
	return err
}
