// Package dataset stores self-play training samples in compressed segment
// files, one segment per generation.
package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/klauspost/compress/zstd"

	"github.com/freeeve/chaturaji/internal/board"
)

// Segment format
//
// File structure:
//   Header (64 bytes, little-endian):
//     - Magic (4): "CTS1"
//     - Version (2): 1
//     - Flags (2): reserved
//     - RecordCount (4)
//     - StateSize (4): float32 values per state
//     - PolicySize (4): float32 values per dense policy
//     - RewardSize (4): float32 values per reward vector
//     - BodyLen (8): uncompressed body length in bytes
//     - Checksum (8): xxhash64 of the uncompressed body
//     - Reserved (24)
//   Body (compressed with zstd):
//     - RecordCount records of State, Policy, Rewards as float32

const (
	Magic      = "CTS1"
	Version    = 1
	HeaderSize = 64

	StateSize  = board.EncodedSize
	PolicySize = board.PolicySize
	RewardSize = board.NumPlayers

	// MaxBodyLen caps the uncompressed body a reader will allocate.
	MaxBodyLen = 8 << 30
)

var (
	ErrBadMagic = errors.New("dataset: bad magic")
	ErrChecksum = errors.New("dataset: checksum mismatch")
	ErrBodySize = errors.New("dataset: body size does not match header")
)

// Record is one training sample: the encoded position, the dense search
// policy and the final rewards rotated so index 0 is the player who moved.
type Record struct {
	State   []float32
	Policy  []float32
	Rewards [RewardSize]float32
}

// Header is the segment file header.
type Header struct {
	Magic       [4]byte
	Version     uint16
	Flags       uint16
	RecordCount uint32
	StateSize   uint32
	PolicySize  uint32
	RewardSize  uint32
	BodyLen     uint64
	Checksum    uint64
	Reserved    [24]byte
}

// RecordBytes is the uncompressed size of one record.
func (h *Header) RecordBytes() int {
	return 4 * int(h.StateSize+h.PolicySize+h.RewardSize)
}

// WriteStats describes one written segment.
type WriteStats struct {
	Records          int
	UncompressedSize int
	CompressedSize   int
	CompressTime     time.Duration
}

func encodeHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint16(buf[6:8], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.RecordCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.StateSize)
	binary.LittleEndian.PutUint32(buf[16:20], h.PolicySize)
	binary.LittleEndian.PutUint32(buf[20:24], h.RewardSize)
	binary.LittleEndian.PutUint64(buf[24:32], h.BodyLen)
	binary.LittleEndian.PutUint64(buf[32:40], h.Checksum)
	copy(buf[40:64], h.Reserved[:])
	return buf
}

func decodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, errors.New("dataset: header too short")
	}
	h := &Header{}
	copy(h.Magic[:], buf[0:4])
	if string(h.Magic[:]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, h.Magic)
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	if h.Version != Version {
		return nil, fmt.Errorf("dataset: unsupported version %d", h.Version)
	}
	h.Flags = binary.LittleEndian.Uint16(buf[6:8])
	h.RecordCount = binary.LittleEndian.Uint32(buf[8:12])
	h.StateSize = binary.LittleEndian.Uint32(buf[12:16])
	h.PolicySize = binary.LittleEndian.Uint32(buf[16:20])
	h.RewardSize = binary.LittleEndian.Uint32(buf[20:24])
	h.BodyLen = binary.LittleEndian.Uint64(buf[24:32])
	h.Checksum = binary.LittleEndian.Uint64(buf[32:40])
	copy(h.Reserved[:], buf[40:64])
	return h, nil
}

func putFloats(dst []byte, vs []float32) []byte {
	for _, v := range vs {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

func readFloats(src []byte, dst []float32) []byte {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
	return src[4*len(dst):]
}

// EncodeBody serializes records into an uncompressed body.
func EncodeBody(records []Record) ([]byte, error) {
	recBytes := 4 * (StateSize + PolicySize + RewardSize)
	body := make([]byte, 0, len(records)*recBytes)
	for i, r := range records {
		if len(r.State) != StateSize {
			return nil, fmt.Errorf("dataset: record %d: state has %d values, want %d", i, len(r.State), StateSize)
		}
		if len(r.Policy) != PolicySize {
			return nil, fmt.Errorf("dataset: record %d: policy has %d values, want %d", i, len(r.Policy), PolicySize)
		}
		body = putFloats(body, r.State)
		body = putFloats(body, r.Policy)
		body = putFloats(body, r.Rewards[:])
	}
	return body, nil
}

// WriteFile writes records as one segment at path. A nil encoder uses a
// default one.
func WriteFile(path string, records []Record, enc *zstd.Encoder) (WriteStats, error) {
	var stats WriteStats
	if len(records) == 0 {
		return stats, errors.New("dataset: no records to write")
	}
	body, err := EncodeBody(records)
	if err != nil {
		return stats, err
	}
	if enc == nil {
		enc, err = zstd.NewWriter(nil)
		if err != nil {
			return stats, err
		}
		defer enc.Close()
	}

	header := Header{
		Version:     Version,
		RecordCount: uint32(len(records)),
		StateSize:   StateSize,
		PolicySize:  PolicySize,
		RewardSize:  RewardSize,
		BodyLen:     uint64(len(body)),
		Checksum:    xxhash.Checksum64(body),
	}
	copy(header.Magic[:], Magic)

	compressStart := time.Now()
	compressed := enc.EncodeAll(body, nil)
	stats.CompressTime = time.Since(compressStart)
	stats.Records = len(records)
	stats.UncompressedSize = len(body)
	stats.CompressedSize = len(compressed)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return stats, err
	}
	f, err := os.Create(path)
	if err != nil {
		return stats, err
	}
	defer f.Close()

	if _, err := f.Write(encodeHeader(&header)); err != nil {
		return stats, err
	}
	if _, err := f.Write(compressed); err != nil {
		return stats, err
	}
	return stats, f.Sync()
}

// ReadHeader reads just the header of a segment.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return decodeHeader(buf)
}

// ReadFile loads and verifies every record of a segment. A nil decoder uses
// a default one.
func ReadFile(path string, dec *zstd.Decoder) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < HeaderSize {
		return nil, errors.New("dataset: file too small")
	}
	header, err := decodeHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}
	if header.StateSize != StateSize || header.PolicySize != PolicySize || header.RewardSize != RewardSize {
		return nil, fmt.Errorf("dataset: record shape %d/%d/%d does not match %d/%d/%d",
			header.StateSize, header.PolicySize, header.RewardSize, StateSize, PolicySize, RewardSize)
	}

	want := uint64(header.RecordCount) * uint64(header.RecordBytes())
	if header.BodyLen != want || header.BodyLen > MaxBodyLen {
		return nil, fmt.Errorf("%w: header says %d bytes for %d records", ErrBodySize, header.BodyLen, header.RecordCount)
	}

	if dec == nil {
		dec, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(header.BodyLen+1<<20))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
	}
	body, err := dec.DecodeAll(data[HeaderSize:], make([]byte, 0, header.BodyLen))
	if err != nil {
		return nil, fmt.Errorf("dataset: decompress: %w", err)
	}
	if uint64(len(body)) != header.BodyLen {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBodySize, len(body), header.BodyLen)
	}
	if xxhash.Checksum64(body) != header.Checksum {
		return nil, ErrChecksum
	}
	n := int(header.RecordCount)

	records := make([]Record, n)
	for i := range records {
		r := &records[i]
		r.State = make([]float32, StateSize)
		r.Policy = make([]float32, PolicySize)
		body = readFloats(body, r.State)
		body = readFloats(body, r.Policy)
		body = readFloats(body, r.Rewards[:])
	}
	return records, nil
}
