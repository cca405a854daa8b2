// Package c64 contains Commodore 64 platform constants, raster timing and
// VIC-II memory layout helpers.
package c64

import (
	"fmt"
	"strings"
)

// Hardware register and vector addresses.
const (
	ProcessorPort uint16 = 0x0001

	VICControl1  uint16 = 0xD011 // raster bit 8, ECM, BMM, DEN, RSEL, YSCROLL
	VICRaster    uint16 = 0xD012
	VICControl2  uint16 = 0xD016 // MCM, CSEL, XSCROLL
	VICMemory    uint16 = 0xD018 // screen, bitmap and charset base
	VICIRQStatus uint16 = 0xD019
	VICIRQEnable uint16 = 0xD01A
	BorderColor  uint16 = 0xD020
	ScreenColor  uint16 = 0xD021
	ColorRAM     uint16 = 0xD800

	CIA1ICR   uint16 = 0xDC0D
	CIA2PortA uint16 = 0xDD00
	CIA2DDRA  uint16 = 0xDD02
	CIA2ICR   uint16 = 0xDD0D

	KernalIRQVector   uint16 = 0x0314
	KernalIRQExit     uint16 = 0xEA81
	HardwareIRQVector uint16 = 0xFFFE
)

// Sizes of the memory areas read by the VIC-II.
const (
	ScreenSize  = 0x400 // 1000 screen codes and the sprite pointers
	BitmapSize  = 0x1F40
	CharsetSize = 0x800
	BankSize    = 0x4000
	ColorSize   = 1000
)

// RegisterNames contains the alias names used for hardware registers in listings.
var RegisterNames = map[uint16]string{
	ProcessorPort: "CPU_PORT",
	VICControl1:   "VIC_CTRL1",
	VICRaster:     "VIC_RASTER",
	VICControl2:   "VIC_CTRL2",
	VICMemory:     "VIC_MEMORY",
	VICIRQStatus:  "VIC_IRQ_STATUS",
	VICIRQEnable:  "VIC_IRQ_ENABLE",
	BorderColor:   "VIC_BORDER",
	ScreenColor:   "VIC_BACKGROUND",
	CIA1ICR:       "CIA1_ICR",
	CIA2PortA:     "CIA2_PORTA",
	CIA2DDRA:      "CIA2_DDRA",
	CIA2ICR:       "CIA2_ICR",
}

// Color is one of the 16 VIC-II colors.
type Color byte

// Palette entries.
const (
	Black Color = iota
	White
	Red
	Cyan
	Purple
	Green
	Blue
	Yellow
	Orange
	Brown
	LightRed
	DarkGray
	Gray
	LightGreen
	LightBlue
	LightGray
)

var colorNames = []string{
	"black", "white", "red", "cyan", "purple", "green", "blue", "yellow",
	"orange", "brown", "lightred", "darkgray", "gray", "lightgreen", "lightblue", "lightgray",
}

func (c Color) String() string {
	return colorNames[c&0x0f]
}

// ParseColor returns the color for a palette name like "blue" or "darkgray".
func ParseColor(name string) (Color, error) {
	name = strings.ToLower(strings.ReplaceAll(name, "_", ""))
	for i, s := range colorNames {
		if s == name {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("unknown color '%s'", name)
}

// ColorNames returns all palette names in palette order.
func ColorNames() []string {
	names := make([]string, len(colorNames))
	copy(names, colorNames)
	return names
}
