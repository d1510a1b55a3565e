package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/living-world/internal/content"
	"github.com/talgya/living-world/internal/engine"
)

// Header is the first line of a snapshot file, readable without decoding
// the whole document.
type Header struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Clock   uint64 `json:"clock"`
	Time    string `json:"time"`
	Agents  int    `json:"agents"`
	Places  int    `json:"places"`
}

// WriteFile saves w to path as a zstd stream holding a header line and the
// state document. The file is replaced atomically.
func WriteFile(path string, w *engine.World) error {
	data, err := Save(w)
	if err != nil {
		return err
	}
	h := Header{
		Version: engine.StateVersion,
		Name:    w.Name(),
		Clock:   w.Clock().Total,
		Time:    w.Now().String(),
		Agents:  w.AgentCount(),
		Places:  w.PlaceCount(),
	}
	return writeCompressed(path, h, data)
}

func writeCompressed(path string, h Header, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := encodeTo(tmp, h, data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func encodeTo(out io.Writer, h Header, data []byte) error {
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := writeBody(enc, h, data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func writeBody(enc io.Writer, h Header, data []byte) error {
	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if _, err := bw.Write(data); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadHeader returns only the header line of a snapshot file.
func ReadHeader(path string) (Header, error) {
	h, _, err := readCompressed(path, false)
	return h, err
}

// ReadFile loads a world saved by WriteFile.
func ReadFile(path string, opts engine.Options, factory content.Factory) (*engine.World, error) {
	_, data, err := readCompressed(path, true)
	if err != nil {
		return nil, err
	}
	return Load(data, opts, factory)
}

func readCompressed(path string, body bool) (Header, []byte, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("%w: header: %w", ErrBadSnapshot, err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("%w: header: %w", ErrBadSnapshot, err)
	}
	if h.Version != engine.StateVersion {
		return h, nil, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, h.Version)
	}
	if !body {
		return h, nil, nil
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return h, nil, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	return h, data, nil
}
