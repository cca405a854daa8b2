package emit

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrodemo/internal/c64"
)

// VideoMode is a VIC-II display mode.
type VideoMode uint8

// Video modes.
const (
	TextMode VideoMode = iota
	MulticolorTextMode
	BitmapMode
	MulticolorBitmapMode
	ExtendedColorMode
)

type videoModeBits struct {
	name     string
	control1 byte // ECM and BMM bits
	control2 byte // MCM bit
}

var videoModes = map[VideoMode]videoModeBits{
	TextMode:             {"text", 0, 0},
	MulticolorTextMode:   {"multicolor-text", 0, c64.Control2Multicolor},
	BitmapMode:           {"bitmap", c64.Control1Bitmap, 0},
	MulticolorBitmapMode: {"multicolor-bitmap", c64.Control1Bitmap, c64.Control2Multicolor},
	ExtendedColorMode:    {"ecm", c64.Control1ECM, 0},
}

func (m VideoMode) String() string {
	def, ok := videoModes[m]
	if !ok {
		return "unknown"
	}
	return def.name
}

// ParseVideoMode returns the video mode for a name like "multicolor-bitmap".
func ParseVideoMode(name string) (VideoMode, error) {
	name = strings.ToLower(strings.ReplaceAll(name, "_", "-"))
	for mode, def := range videoModes {
		if def.name == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown video mode '%s'", name)
}
