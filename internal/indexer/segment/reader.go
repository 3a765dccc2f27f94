package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/Adithya-Monish-Kumar-K/minisearch/internal/indexer/index"
)

// ReadHeader parses and checks the fixed header of a segment blob.
func ReadHeader(data []byte) (SegmentHeader, error) {
	if len(data) < HeaderSize+FooterSize {
		return SegmentHeader{}, fmt.Errorf("invalid segment: %d bytes is too short", len(data))
	}
	header := SegmentHeader{
		Magic:     binary.LittleEndian.Uint32(data[0:4]),
		Version:   binary.LittleEndian.Uint32(data[4:8]),
		Flags:     binary.LittleEndian.Uint32(data[8:12]),
		DocCount:  binary.LittleEndian.Uint32(data[12:16]),
		TermCount: binary.LittleEndian.Uint32(data[16:20]),
		CreatedAt: int64(binary.LittleEndian.Uint64(data[20:28])),
		BodySize:  int64(binary.LittleEndian.Uint64(data[28:36])),
	}
	if header.Magic != MagicBytes {
		return header, fmt.Errorf("invalid segment: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return header, fmt.Errorf("invalid segment: unsupported version %d", header.Version)
	}
	if header.BodySize != int64(len(data)-HeaderSize-FooterSize) {
		return header, fmt.Errorf("invalid segment: body size %d does not match blob", header.BodySize)
	}
	return header, nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (*Segment, error) {
	header, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	body := data[HeaderSize : HeaderSize+int(header.BodySize)]
	footer := data[HeaderSize+int(header.BodySize):]
	if want := binary.LittleEndian.Uint32(footer[0:4]); crc32.ChecksumIEEE(body) != want {
		return nil, fmt.Errorf("invalid segment: checksum mismatch")
	}
	switch {
	case header.Flags&flagZstd != 0:
		body, err = zstdDecoder().DecodeAll(body, nil)
	case header.Flags&flagLZ4 != 0:
		body, err = lz4Unblock(body)
	}
	if err != nil {
		return nil, fmt.Errorf("decompressing segment: %w", err)
	}

	var fb fileBody
	if err := json.Unmarshal(body, &fb); err != nil {
		return nil, fmt.Errorf("parsing segment: %w", err)
	}
	if fb.MaxDoc != header.DocCount {
		return nil, fmt.Errorf("invalid segment %s: doc count %d, header says %d", fb.ID, fb.MaxDoc, header.DocCount)
	}

	s := &Segment{
		id:      fb.ID,
		maxDoc:  fb.MaxDoc,
		fields:  make(map[string]*fieldTerms, len(fb.Fields)),
		stored:  fromWireStored(fb.Stored),
		norms:   fb.Norms,
		vectors: fromWireVectors(fb.Vectors),
	}
	for _, f := range fb.Fields {
		if len(f.Dict) != len(f.Postings) {
			return nil, fmt.Errorf("invalid segment %s: field %q has %d terms and %d posting lists",
				fb.ID, f.Name, len(f.Dict), len(f.Postings))
		}
		ft := &fieldTerms{
			terms:    make([]string, len(f.Dict)),
			postings: make([]index.PostingList, len(f.Postings)),
		}
		for i, entry := range f.Dict {
			ft.terms[i] = string(entry.Term)
			ft.postings[i] = f.Postings[i]
			for _, p := range f.Postings[i] {
				if p.DocID >= fb.MaxDoc {
					return nil, fmt.Errorf("invalid segment %s: posting doc %d out of range", fb.ID, p.DocID)
				}
			}
			s.size += int64(len(entry.Term)) + int64(len(f.Postings[i]))*16
		}
		s.fields[f.Name] = ft
	}
	s.finish()
	return s, nil
}
