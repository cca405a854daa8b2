package c64

import (
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestParseColor(t *testing.T) {
	c, err := ParseColor("Light_Blue")
	assert.NoError(t, err)
	assert.Equal(t, LightBlue, c)
	assert.Equal(t, "lightblue", Color(0x1e).String())

	_, err = ParseColor("pink")
	assert.ErrorContains(t, err, "unknown color 'pink'")
	assert.Len(t, ColorNames(), 16)
}

func TestBankRegister(t *testing.T) {
	register, value := BankRegister(1, BankViaPortA)
	assert.Equal(t, CIA2PortA, register)
	assert.Equal(t, byte(2), value)

	register, value = BankRegister(1, BankViaDDR)
	assert.Equal(t, CIA2DDRA, register)
	assert.Equal(t, byte(0x3d), value)

	assert.Equal(t, uint16(0xc000), BankBase(3))
	assert.Equal(t, byte(2), BankOf(0x8400))
}

func TestScreenAndBitmap(t *testing.T) {
	value, bank, err := ScreenAndBitmap(0x5c00, 0x6000)
	assert.NoError(t, err)
	assert.Equal(t, byte(0x78), value)
	assert.Equal(t, byte(1), bank)

	_, _, err = ScreenAndBitmap(0x5c01, 0x6000)
	assert.ErrorContains(t, err, "not aligned")
	_, _, err = ScreenAndBitmap(0x4000, 0x8000)
	assert.ErrorContains(t, err, "different VIC banks")
}

func TestScreenAndCharset(t *testing.T) {
	value, bank, err := ScreenAndCharset(0x0400, 0x1000)
	assert.NoError(t, err)
	assert.Equal(t, byte(0x14), value)
	assert.Equal(t, byte(0), bank)

	value, _, err = ScreenAndCharset(0x3400, 0x3800)
	assert.NoError(t, err)
	assert.Equal(t, byte(0xde), value)

	_, _, err = ScreenAndCharset(0x0400, 0x1100)
	assert.ErrorContains(t, err, "not aligned")
}

func TestDisplayWindows(t *testing.T) {
	tests := []struct {
		name     string
		bank     byte
		control1 byte
		control2 byte
		memory   byte
		expected []Window
	}{
		{
			name:     "default text screen with character rom",
			control1: DefaultControl1,
			control2: DefaultControl2,
			memory:   DefaultMemory,
			expected: []Window{{Start: 0x0400, Length: ScreenSize, Kind: ScreenWindow}},
		},
		{
			name:     "bitmap",
			bank:     1,
			control1: 0x3b,
			control2: 0xc8,
			memory:   0x78,
			expected: []Window{
				{Start: 0x5c00, Length: ScreenSize, Kind: ScreenWindow},
				{Start: 0x6000, Length: BitmapSize, Kind: BitmapWindow},
			},
		},
		{
			name:     "charset in ram",
			bank:     1,
			control1: 0x1b,
			control2: 0xc8,
			memory:   0x1e,
			expected: []Window{
				{Start: 0x4400, Length: ScreenSize, Kind: ScreenWindow},
				{Start: 0x7800, Length: CharsetSize, Kind: CharsetWindow},
			},
		},
		{
			name:     "blank",
			control1: 0x0b,
			control2: 0xc8,
			memory:   0x15,
		},
		{
			name:     "invalid mode",
			control1: 0x7b,
			control2: 0xc8,
			memory:   0x15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows := DisplayWindows(tt.bank, tt.control1, tt.control2, tt.memory)
			assert.Len(t, windows, len(tt.expected))
			for i, w := range tt.expected {
				assert.Equal(t, w, windows[i])
			}
		})
	}
}

func TestTiming(t *testing.T) {
	pal, err := TimingFor(PAL)
	assert.NoError(t, err)
	assert.Equal(t, 19656, pal.CyclesPerFrame())
	assert.Equal(t, uint16(311), pal.MaxLine())

	ntsc, err := TimingFor(NTSC)
	assert.NoError(t, err)
	assert.Equal(t, 17095, ntsc.CyclesPerFrame())

	_, err = TimingFor("secam")
	assert.ErrorContains(t, err, "unsupported system 'secam'")

	assert.Equal(t, 312, pal.LinesBetween(0x30, 0x30))
	assert.Equal(t, 16, pal.LinesBetween(0x30, 0x40))
	assert.Equal(t, 24, pal.LinesBetween(0x130, 0x10))
	assert.Equal(t, uint16(1), pal.Add(311, 2))

	assert.True(t, IsBadLine(0x33))
	assert.True(t, IsBadLine(0xf3))
	assert.False(t, IsBadLine(0x34))
	assert.False(t, IsBadLine(0xfb))
	assert.False(t, IsBadLine(0x2b))

	assert.Equal(t, 8*63, pal.AvailableCycles(0, 8))
	assert.Equal(t, 8*63-40, pal.AvailableCycles(0x30, 0x38))
}

func TestFramesFromTimestamp(t *testing.T) {
	pal, err := TimingFor(PAL)
	assert.NoError(t, err)

	tests := []struct {
		stamp    string
		frames   int
		expected string
	}{
		{stamp: "00:02.00", frames: 100},
		{stamp: "01:00:10", frames: 3010},
		{stamp: "01:00:00:01", frames: 180001},
		{stamp: "00:00.50", expected: "out of range"},
		{stamp: "1:x", expected: "invalid character"},
		{stamp: "10", expected: "invalid timestamp"},
		{stamp: ":1:2", expected: "invalid timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.stamp, func(t *testing.T) {
			frames, err := pal.FramesFromTimestamp(tt.stamp)
			if tt.expected != "" {
				assert.ErrorContains(t, err, tt.expected)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.frames, frames)
		})
	}
}
