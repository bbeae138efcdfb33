// Package snapshot persists exported indexes. Both stores share one framing:
// a fixed 64-byte header followed by the JSON-encoded index snapshot,
// optionally zstd-compressed.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textindex/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/textindex/pkg/errors"
	"github.com/klauspost/compress/zstd"
)

// MagicBytes identifies a framed snapshot ("TIDX").
const (
	MagicBytes    uint32 = 0x54494458
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
)

const flagZstd uint32 = 1

// Header is the fixed-size preamble of every framed snapshot.
//
//	[0:4]   magic
//	[4:8]   format version
//	[8:12]  flags
//	[12:16] crc32 (IEEE) of the body as stored
//	[16:24] body length
//	[24:32] created at, unix seconds
//	[32:36] document count
//	[36:40] term count
//	[40:64] reserved
type Header struct {
	Magic     uint32
	Version   uint32
	Flags     uint32
	Checksum  uint32
	BodyLen   int64
	CreatedAt int64
	DocCount  uint32
	TermCount uint32
}

func (h Header) Compressed() bool {
	return h.Flags&flagZstd != 0
}

func (h Header) marshal() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.Flags)
	binary.LittleEndian.PutUint32(b[12:16], h.Checksum)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.BodyLen))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint32(b[32:36], h.DocCount)
	binary.LittleEndian.PutUint32(b[36:40], h.TermCount)
	return b
}

// ReadHeader parses and validates the preamble of a framed snapshot.
func ReadHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "short header: %d bytes", len(b))
	}
	h := Header{
		Magic:     binary.LittleEndian.Uint32(b[0:4]),
		Version:   binary.LittleEndian.Uint32(b[4:8]),
		Flags:     binary.LittleEndian.Uint32(b[8:12]),
		Checksum:  binary.LittleEndian.Uint32(b[12:16]),
		BodyLen:   int64(binary.LittleEndian.Uint64(b[16:24])),
		CreatedAt: int64(binary.LittleEndian.Uint64(b[24:32])),
		DocCount:  binary.LittleEndian.Uint32(b[32:36]),
		TermCount: binary.LittleEndian.Uint32(b[36:40]),
	}
	if h.Magic != MagicBytes {
		return Header{}, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "bad magic bytes %x", h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "unsupported format version %d", h.Version)
	}
	if h.BodyLen < 0 {
		return Header{}, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "negative body length")
	}
	return h, nil
}

// Encode frames snap. With compress set the body is zstd-compressed.
func Encode(snap *index.Snapshot, compress bool) ([]byte, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInternal, "marshaling snapshot: %v", err)
	}
	var flags uint32
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInternal, "creating zstd encoder: %v", err)
		}
		body = enc.EncodeAll(body, nil)
		_ = enc.Close()
		flags |= flagZstd
	}
	h := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		Flags:     flags,
		Checksum:  crc32.ChecksumIEEE(body),
		BodyLen:   int64(len(body)),
		CreatedAt: time.Now().Unix(),
		DocCount:  uint32(snap.DocCount),
		TermCount: uint32(len(snap.Terms)),
	}
	out := make([]byte, 0, HeaderSize+len(body))
	out = append(out, h.marshal()...)
	out = append(out, body...)
	return out, nil
}

// Decode validates the framing and checksum and unmarshals the snapshot.
func Decode(data []byte) (*index.Snapshot, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[HeaderSize:]
	if int64(len(body)) != h.BodyLen {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "body length %d, header says %d", len(body), h.BodyLen)
	}
	if sum := crc32.ChecksumIEEE(body); sum != h.Checksum {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "checksum mismatch: %08x != %08x", sum, h.Checksum)
	}
	if h.Compressed() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInternal, "creating zstd decoder: %v", err)
		}
		defer dec.Close()
		body, err = dec.DecodeAll(body, nil)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "decompressing body: %v", err)
		}
	}
	var snap index.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, apperrors.Newf(apperrors.ErrSnapshotCorrupt, "parsing body: %v", err)
	}
	return &snap, nil
}
