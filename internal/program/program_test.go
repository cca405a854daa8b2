package program

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func segment(name string, address uint16, data ...byte) *Segment {
	return &Segment{
		Name:    name,
		Address: address,
		Offsets: []Offset{{Address: address, OpcodeBytes: data, Type: DataOffset}},
	}
}

func TestImage(t *testing.T) {
	app := New("intro", 0x0801)
	app.AddSegment(segment("font", 0x0806, 0xaa, 0xbb))
	app.AddSegment(segment("entry", 0x0801, 0x4c, 0x00, 0x09))
	app.AddSegment(&Segment{Name: "empty", Address: 0x0900})

	start, image, err := app.Image()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0801), start)
	assert.Equal(t, []byte{0x4c, 0x00, 0x09, 0x00, 0x00, 0xaa, 0xbb}, image)

	prg, err := app.PRG()
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x08, 0x4c, 0x00, 0x09, 0x00, 0x00, 0xaa, 0xbb}, prg)
}

func TestImageOverlap(t *testing.T) {
	app := New("intro", 0x0801)
	app.AddSegment(segment("a", 0x0801, 1, 2, 3))
	app.AddSegment(segment("b", 0x0803, 4))

	_, _, err := app.Image()
	assert.ErrorContains(t, err, "segment 'b' at $0803 overlaps previous segment ending at $0803")
}

func TestSegment(t *testing.T) {
	s := &Segment{
		Address: 0xfff0,
		Offsets: []Offset{
			{OpcodeBytes: []byte{0xa9, 0x01}, Type: CodeOffset},
			{OpcodeBytes: []byte{0x8d, 0x20, 0xd0}, Type: CodeOffset},
		},
	}
	assert.Equal(t, 5, s.Size())
	assert.Equal(t, 0xfff5, s.End())
	assert.Equal(t, []byte{0xa9, 0x01, 0x8d, 0x20, 0xd0}, s.Bytes())
}
