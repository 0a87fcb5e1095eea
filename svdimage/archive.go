package svdimage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/yyyoichi/bitstream-go"
	"gonum.org/v1/gonum/floats"

	"github.com/yyyoichi/mllab/internal/lowrank"
	"github.com/yyyoichi/mllab/internal/planes"
)

// DefaultQuantBits is the number of bits each stored coefficient is
// quantized to when no option overrides it.
const DefaultQuantBits = 12

var (
	ErrBadArchive = errors.New("not a valid svz archive")

	svzMagic = [4]byte{'S', 'V', 'Z', '1'}
)

// WithQuantBits sets the per-coefficient quantization depth of written
// archives, between 2 and 16 bits.
func WithQuantBits(bits int) Option {
	return func(c *Compressor) error {
		if bits < 2 || bits > 16 {
			return fmt.Errorf("quantization bits must be in [2, 16]: %d", bits)
		}
		c.qbits = bits
		return nil
	}
}

// WriteArchive serializes the rank-k factors of the named image into w
// in the svz format: a fixed header followed by the U, S and V blocks
// of every channel, each linearly quantized against its own value
// range and bit-packed.
func (c *Compressor) WriteArchive(w io.Writer, name string, k int) error {
	src, fs, err := c.lookup(name)
	if err != nil {
		return err
	}
	if k < 1 || k > fs[0].Rank() {
		return fmt.Errorf("%w: k=%d not in [1, %d] for %q", ErrRankOutOfRange, k, fs[0].Rank(), name)
	}
	qbits := c.qbits
	if qbits == 0 {
		qbits = DefaultQuantBits
	}

	hdr := archiveHeader{
		Magic:    svzMagic,
		QBits:    uint8(qbits),
		Channels: uint8(len(fs)),
		Width:    uint32(src.Width),
		Height:   uint32(src.Height),
		Rank:     uint32(k),
	}
	if src.Gray() {
		hdr.Flags |= flagGray
	}
	if err := binary.Write(w, binary.BigEndian, hdr); err != nil {
		return fmt.Errorf("failed to write archive header: %w", err)
	}

	bw := bitstream.NewBitWriter[uint64](0, 0)
	for _, f := range fs {
		tr, err := f.Truncate(k)
		if err != nil {
			return err
		}
		for _, block := range [][]float64{tr.U, tr.S, tr.V} {
			lo, hi := floats.Min(block), floats.Max(block)
			if err := binary.Write(w, binary.BigEndian, [2]float64{lo, hi}); err != nil {
				return fmt.Errorf("failed to write block range: %w", err)
			}
			packBlock(bw, block, lo, hi, qbits)
		}
	}

	words := bw.Data()
	if err := binary.Write(w, binary.BigEndian, uint32(len(words))); err != nil {
		return fmt.Errorf("failed to write payload size: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, words); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// Archive is a parsed svz file: the truncated factors of one image,
// dequantized and ready to multiply back into pixels.
type Archive struct {
	Width, Height int
	Rank          int
	QuantBits     int
	Gray          bool

	channels []*lowrank.Truncation
}

// ReadArchive parses an svz stream written by WriteArchive.
func ReadArchive(r io.Reader) (*Archive, error) {
	var hdr archiveHeader
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	if hdr.Magic != svzMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadArchive, hdr.Magic[:])
	}
	if hdr.Channels != 1 && hdr.Channels != 3 {
		return nil, fmt.Errorf("%w: %d channels", ErrBadArchive, hdr.Channels)
	}
	if hdr.QBits < 2 || hdr.QBits > 16 {
		return nil, fmt.Errorf("%w: %d quantization bits", ErrBadArchive, hdr.QBits)
	}
	m, n, k := int(hdr.Height), int(hdr.Width), int(hdr.Rank)
	if m < 1 || n < 1 || k < 1 || k > min(m, n) {
		return nil, fmt.Errorf("%w: %dx%d at rank %d", ErrBadArchive, n, m, k)
	}

	type blockRange [2]float64
	ranges := make([]blockRange, 3*int(hdr.Channels))
	for i := range ranges {
		if err := binary.Read(r, binary.BigEndian, &ranges[i]); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
		}
	}
	var wordCount uint32
	if err := binary.Read(r, binary.BigEndian, &wordCount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	qbits := int(hdr.QBits)
	wantBits := int(hdr.Channels) * k * (m + n + 1) * qbits
	if int(wordCount)*64 < wantBits {
		return nil, fmt.Errorf("%w: payload of %d words holds fewer than %d bits", ErrBadArchive, wordCount, wantBits)
	}
	words := make([]uint64, wordCount)
	if err := binary.Read(r, binary.BigEndian, words); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}

	br := bitstream.NewBitReader(words, 0, 0)
	br.SetBits(int(wordCount) * 64)
	a := &Archive{
		Width:     n,
		Height:    m,
		Rank:      k,
		QuantBits: qbits,
		Gray:      hdr.Flags&flagGray != 0,
	}
	pos := 0
	for ch := range int(hdr.Channels) {
		tr := &lowrank.Truncation{M: m, N: n, K: k}
		for i, size := range []int{m * k, k, n * k} {
			rg := ranges[3*ch+i]
			block, next, err := unpackBlock(br, pos, size, rg[0], rg[1], qbits)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
			}
			pos = next
			switch i {
			case 0:
				tr.U = block
			case 1:
				tr.S = block
			case 2:
				tr.V = block
			}
		}
		a.channels = append(a.channels, tr)
	}
	return a, nil
}

// Image multiplies the stored factors back into a picture, using the
// same grayscale clamp and joint color rescale as Compressor.Compress.
func (a *Archive) Image() image.Image {
	p := planes.Planes{
		Width:  a.Width,
		Height: a.Height,
		Ch:     make([][]float64, len(a.channels)),
	}
	for ch, tr := range a.channels {
		p.Ch[ch] = tr.Reconstruct().RawMatrix().Data
	}
	if !p.Gray() {
		planes.RescaleJoint(p.Ch)
	}
	return p.ToImage()
}

// Factors returns the dequantized per-channel truncations.
func (a *Archive) Factors() []*lowrank.Truncation {
	return a.channels
}

// Ratio reports the pixel-count compression ratio of the stored rank.
func (a *Archive) Ratio() float64 {
	return lowrank.Ratio(a.Height, a.Width, a.Rank)
}

const flagGray = 1 << 0

type archiveHeader struct {
	Magic    [4]byte
	Flags    uint8
	QBits    uint8
	Channels uint8
	_        uint8
	Width    uint32
	Height   uint32
	Rank     uint32
}

// packBlock appends every value of block to w as a qbits-wide integer,
// most significant bit first, mapped linearly from [lo, hi].
func packBlock(w *bitstream.BitWriter[uint64], block []float64, lo, hi float64, qbits int) {
	levels := float64(uint64(1)<<qbits - 1)
	span := hi - lo
	for _, v := range block {
		var q uint64
		if span > 0 {
			q = uint64((v-lo)/span*levels + 0.5)
		}
		for j := qbits - 1; j >= 0; j-- {
			w.WriteBool(q>>uint(j)&1 == 1)
		}
	}
}

// unpackBlock reads size qbits-wide integers starting at bit pos and
// maps them back into [lo, hi]. It returns the block and the next bit
// position.
func unpackBlock(r *bitstream.BitReader[uint64], pos, size int, lo, hi float64, qbits int) ([]float64, int, error) {
	levels := float64(uint64(1)<<qbits - 1)
	span := hi - lo
	block := make([]float64, size)
	for i := range block {
		var q uint64
		for range qbits {
			bit, err := r.ReadBitAt(pos)
			if err != nil {
				return nil, pos, err
			}
			pos++
			q <<= 1
			if bit {
				q |= 1
			}
		}
		block[i] = lo + float64(q)/levels*span
	}
	return block, pos, nil
}
