package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// SegmentExt is the file extension of segment files.
const SegmentExt = ".cts"

// WriterConfig configures a Writer.
type WriterConfig struct {
	Dir    string // Output directory (default "training_data")
	Level  zstd.EncoderLevel
	Logger zerolog.Logger
}

// Writer writes one segment per call into a directory. Segments are written
// to a temp file first and renamed into place.
type Writer struct {
	cfg WriterConfig
	log zerolog.Logger

	mu       sync.Mutex
	enc      *zstd.Encoder
	segments int
	records  int64
	lastName string
}

// NewWriter creates the output directory and a shared encoder.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Dir == "" {
		cfg.Dir = "training_data"
	}
	if cfg.Level == 0 {
		cfg.Level = zstd.SpeedDefault
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(cfg.Level))
	if err != nil {
		return nil, err
	}
	return &Writer{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "dataset").Logger(),
		enc: enc,
	}, nil
}

// Write stores records as a new gen_<unix-nanos> segment and returns its
// path. Empty input writes nothing.
func (w *Writer) Write(records []Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	name := fmt.Sprintf("gen_%d%s", time.Now().UnixNano(), SegmentExt)
	// Two flushes within one clock tick must not collide.
	if name <= w.lastName {
		name = fmt.Sprintf("gen_%d_%d%s", time.Now().UnixNano(), w.segments, SegmentExt)
	}
	path := filepath.Join(w.cfg.Dir, name)
	tmp := path + ".tmp"

	stats, err := WriteFile(tmp, records, w.enc)
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write segment: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename segment: %w", err)
	}

	w.lastName = name
	w.segments++
	w.records += int64(len(records))
	w.log.Info().
		Str("path", path).
		Int("records", stats.Records).
		Int("raw_bytes", stats.UncompressedSize).
		Int("compressed_bytes", stats.CompressedSize).
		Dur("compress", stats.CompressTime).
		Msg("segment written")
	return path, nil
}

// Segments returns how many segments this writer produced and the total
// record count.
func (w *Writer) Segments() (int, int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.segments, w.records
}

// Close releases the encoder.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Close()
}

// ListSegments returns the segment files in dir, oldest first.
func ListSegments(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "gen_*"+SegmentExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}
