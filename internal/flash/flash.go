package flash

import (
	"errors"
	"fmt"

	"example.com/druglib/internal/blockfmt"
	"example.com/druglib/internal/encoder"
)

// Flash geometry of the library region.
const (
	BlockSize     = 64
	BlocksPerPage = 64
	FirstBlock    = 64
	LastBlock     = FirstBlock + encoder.ImageSize/BlockSize
	FirstPage     = FirstBlock / BlocksPerPage
	LastPage      = LastBlock / BlocksPerPage
)

var ErrImageSize = errors.New("library image has the wrong size")

// Block is one non-erased 64-byte block and its absolute flash index.
type Block struct {
	Index int
	Data  []byte
}

// Plan lists what an upload has to erase and write.
type Plan struct {
	Pages    []int
	Blocks   []Block
	Checksum uint32
	Skipped  int
}

// NewPlan splits image into flash blocks. Erased blocks are neither written
// nor part of the transfer checksum.
func NewPlan(image []byte) (*Plan, error) {
	if len(image) != encoder.ImageSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrImageSize, len(image), encoder.ImageSize)
	}
	p := &Plan{}
	for page := FirstPage; page < LastPage; page++ {
		p.Pages = append(p.Pages, page)
	}
	var crc uint32
	for i := 0; i < LastBlock-FirstBlock; i++ {
		data := image[i*BlockSize : (i+1)*BlockSize]
		if blockfmt.IsErased(data) {
			p.Skipped++
			continue
		}
		p.Blocks = append(p.Blocks, Block{Index: FirstBlock + i, Data: data})
		crc = blockfmt.Checksum(crc, data)
	}
	p.Checksum = crc
	return p, nil
}

// TransferChecksum is the chained checksum over the non-erased blocks that
// the pump verifies after an upload.
func TransferChecksum(image []byte) (uint32, error) {
	p, err := NewPlan(image)
	if err != nil {
		return 0, err
	}
	return p.Checksum, nil
}

// Bytes returns the number of bytes the plan writes.
func (p *Plan) Bytes() int64 {
	return int64(len(p.Blocks) * BlockSize)
}
