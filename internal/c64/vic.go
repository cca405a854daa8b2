package c64

import "fmt"

// Default register values after the KERNAL initialized the machine. They are
// assumed for registers whose value is unknown at compile time.
const (
	DefaultBank     = 0
	DefaultControl1 = 0x1b
	DefaultControl2 = 0xc8
	DefaultMemory   = 0x15
)

// Control register 1 bits.
const (
	Control1RasterBit8 = 0x80
	Control1ECM        = 0x40
	Control1Bitmap     = 0x20
	Control1Display    = 0x10
	Control1Rows25     = 0x08
)

// Control register 2 bits.
const (
	Control2Multicolor = 0x10
	Control2Columns40  = 0x08
)

// BankMethod selects how the VIC bank is switched.
type BankMethod uint8

const (
	// BankViaPortA writes the inverted bank number to $DD00.
	BankViaPortA BankMethod = iota
	// BankViaDDR writes the data direction register $DD02, which leaves the
	// serial bus lines used by IRQ loaders untouched.
	BankViaDDR
)

// BankBase returns the first address of a VIC bank.
func BankBase(bank byte) uint16 {
	return uint16(bank&3) * BankSize
}

// BankOf returns the VIC bank that contains the address.
func BankOf(address uint16) byte {
	return byte(address >> 14)
}

// BankRegister returns the register and value that select the bank.
func BankRegister(bank byte, method BankMethod) (uint16, byte) {
	if method == BankViaDDR {
		return CIA2DDRA, 0x3c | bank&3
	}
	return CIA2PortA, 3 - bank&3
}

// ScreenAndBitmap returns the $D018 value that points the VIC-II to a screen
// and a bitmap, together with the bank that contains both.
func ScreenAndBitmap(screen, bitmap uint16) (byte, byte, error) {
	if screen%ScreenSize != 0 {
		return 0, 0, fmt.Errorf("screen address $%04x is not aligned to $%04x", screen, ScreenSize)
	}
	if bitmap%0x2000 != 0 {
		return 0, 0, fmt.Errorf("bitmap address $%04x is not aligned to $2000", bitmap)
	}
	bank := BankOf(screen)
	if BankOf(bitmap) != bank {
		return 0, 0, fmt.Errorf("screen $%04x and bitmap $%04x are in different VIC banks", screen, bitmap)
	}
	base := BankBase(bank)
	value := byte((screen-base)/ScreenSize)<<4 | byte((bitmap-base)/0x2000)<<3
	return value, bank, nil
}

// ScreenAndCharset returns the $D018 value that points the VIC-II to a screen
// and a character set, together with the bank that contains both.
func ScreenAndCharset(screen, charset uint16) (byte, byte, error) {
	if screen%ScreenSize != 0 {
		return 0, 0, fmt.Errorf("screen address $%04x is not aligned to $%04x", screen, ScreenSize)
	}
	if charset%CharsetSize != 0 {
		return 0, 0, fmt.Errorf("charset address $%04x is not aligned to $%04x", charset, CharsetSize)
	}
	bank := BankOf(screen)
	if BankOf(charset) != bank {
		return 0, 0, fmt.Errorf("screen $%04x and charset $%04x are in different VIC banks", screen, charset)
	}
	base := BankBase(bank)
	value := byte((screen-base)/ScreenSize)<<4 | byte((charset-base)/CharsetSize)<<1
	return value, bank, nil
}

// WindowKind describes what the VIC-II reads from a display window.
type WindowKind uint8

// Display window kinds.
const (
	ScreenWindow WindowKind = iota
	BitmapWindow
	CharsetWindow
)

func (k WindowKind) String() string {
	switch k {
	case ScreenWindow:
		return "screen"
	case BitmapWindow:
		return "bitmap"
	default:
		return "charset"
	}
}

// Window is a memory range that the VIC-II reads while displaying.
type Window struct {
	Start  uint16
	Length int
	Kind   WindowKind
}

// DisplayWindows returns the memory ranges read by the VIC-II for the given
// bank and register values. A blanked display or an invalid mode reads
// nothing that becomes visible.
func DisplayWindows(bank, control1, control2, memory byte) []Window {
	if control1&Control1Display == 0 {
		return nil
	}
	ecm := control1&Control1ECM != 0
	bitmap := control1&Control1Bitmap != 0
	multicolor := control2&Control2Multicolor != 0
	if ecm && (bitmap || multicolor) {
		return nil
	}

	base := BankBase(bank)
	screen := Window{Start: base + uint16(memory>>4)*ScreenSize, Length: ScreenSize, Kind: ScreenWindow}
	if bitmap {
		start := base + uint16(memory>>3&1)*0x2000
		return []Window{screen, {Start: start, Length: BitmapSize, Kind: BitmapWindow}}
	}

	charset := base + uint16(memory>>1&7)*CharsetSize
	// banks 0 and 2 show the character ROM at $1000-$1fff instead of RAM
	if (bank == 0 || bank == 2) && charset-base >= 0x1000 && charset-base < 0x2000 {
		return []Window{screen}
	}
	return []Window{screen, {Start: charset, Length: CharsetSize, Kind: CharsetWindow}}
}
