package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx segment blob.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 3
	HeaderSize    int    = 64
	FooterSize    int    = 16
	// FileExt is appended to the segment id to form its blob name.
	FileExt = ".spdx"
)

const (
	flagZstd uint32 = 1 << 0
	flagLZ4  uint32 = 1 << 1
)

// SegmentHeader is the 64-byte header written at the start of every blob.
type SegmentHeader struct {
	Magic     uint32
	Version   uint32
	Flags     uint32
	DocCount  uint32
	TermCount uint32
	CreatedAt int64
	BodySize  int64
}

// DictEntry is one term of a field dictionary.
type DictEntry struct {
	Term    wireString `json:"t"`
	DocFreq int        `json:"d"`
}

type fieldBody struct {
	Name     string              `json:"name"`
	Dict     []DictEntry         `json:"dict"`
	Postings []index.PostingList `json:"postings"`
}

type fileBody struct {
	ID      string                        `json:"id"`
	MaxDoc  uint32                        `json:"max_doc"`
	Fields  []fieldBody                   `json:"fields"`
	Stored  [][]wireField                 `json:"stored"`
	Norms   map[string][]uint32           `json:"norms"`
	Vectors []map[string][]wireVectorTerm `json:"vectors,omitempty"`
}

// Compression selects the body framing.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

func zstdEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return encoder
}

func zstdDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil)
	})
	return decoder
}

// lz4Block frames data as its uncompressed length followed by one LZ4
// block. It returns nil when the data does not compress.
func lz4Block(data []byte) ([]byte, error) {
	out := make([]byte, 4+lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, out[4:], nil)
	if err != nil || n == 0 {
		return nil, err
	}
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(data)))
	return out[:4+n], nil
}

func lz4Unblock(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("lz4 block too small")
	}
	out := make([]byte, binary.LittleEndian.Uint32(data[0:4]))
	n, err := lz4.UncompressBlock(data[4:], out)
	if err != nil {
		return nil, err
	}
	if n != len(out) {
		return nil, fmt.Errorf("lz4 block: decompressed %d bytes, want %d", n, len(out))
	}
	return out, nil
}

// Encode serialises a segment: header, JSON body (optionally zstd or lz4 framed)
// and a footer carrying the CRC32 of the body as written.
func Encode(s *Segment, compression Compression) ([]byte, error) {
	body := fileBody{
		ID:      s.id,
		MaxDoc:  s.maxDoc,
		Fields:  make([]fieldBody, 0, len(s.names)),
		Stored:  toWireStored(s.stored),
		Norms:   s.norms,
		Vectors: toWireVectors(s.vectors),
	}
	termCount := 0
	for _, name := range s.names {
		ft := s.fields[name]
		dict := make([]DictEntry, len(ft.terms))
		for i, term := range ft.terms {
			dict[i] = DictEntry{Term: wireString(term), DocFreq: len(ft.postings[i])}
		}
		termCount += len(dict)
		body.Fields = append(body.Fields, fieldBody{Name: name, Dict: dict, Postings: ft.postings})
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling segment %s: %w", s.id, err)
	}

	var flags uint32
	switch compression {
	case CompressionZstd:
		data = zstdEncoder().EncodeAll(data, make([]byte, 0, len(data)/2))
		flags |= flagZstd
	case CompressionLZ4:
		block, err := lz4Block(data)
		if err != nil {
			return nil, fmt.Errorf("compressing segment %s: %w", s.id, err)
		}
		if block != nil {
			data = block
			flags |= flagLZ4
		}
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(data)+FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], flags)
	binary.LittleEndian.PutUint32(buf[12:16], s.maxDoc)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(termCount))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(buf[28:36], uint64(len(data)))
	buf = append(buf, data...)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(data))
	binary.LittleEndian.PutUint32(footer[4:8], s.maxDoc)
	binary.LittleEndian.PutUint64(footer[8:16], uint64(len(data)))
	return append(buf, footer...), nil
}
