package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/obig20/docorganizer/internal/domain"
)

// Blob layout: magic, format version, dimension, row count, then row-major
// little-endian float32 values. The sidecar mapping file is written alongside
// and the row count must equal the mapping length on load.
var blobMagic = [4]byte{'d', 'v', 'e', 'c'}

const blobVersion uint32 = 1

type blobHeader struct {
	Magic   [4]byte
	Version uint32
	Dim     uint32
	Rows    uint32
}

// encodeBlob serializes the dense vector arena.
func encodeBlob(w io.Writer, dim int, data []float32) error {
	rows := 0
	if dim > 0 {
		rows = len(data) / dim
	}
	hdr := blobHeader{
		Magic:   blobMagic,
		Version: blobVersion,
		Dim:     uint32(dim),
		Rows:    uint32(rows),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	return nil
}

// decodeBlob reads a vector arena back. Truncated or malformed blobs fail
// with domain.ErrIndexCorrupted; partial loads are never returned.
func decodeBlob(r io.Reader) (dim int, data []float32, err error) {
	var hdr blobHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return 0, nil, fmt.Errorf("read header: %w: %w", err, domain.ErrIndexCorrupted)
	}
	if !bytes.Equal(hdr.Magic[:], blobMagic[:]) {
		return 0, nil, fmt.Errorf("bad magic %q: %w", hdr.Magic[:], domain.ErrIndexCorrupted)
	}
	if hdr.Version != blobVersion {
		return 0, nil, fmt.Errorf("unsupported blob version %d: %w", hdr.Version, domain.ErrIndexCorrupted)
	}

	data = make([]float32, int(hdr.Dim)*int(hdr.Rows))
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return 0, nil, fmt.Errorf("read %d vector rows: %w: %w", hdr.Rows, err, domain.ErrIndexCorrupted)
	}
	return int(hdr.Dim), data, nil
}
