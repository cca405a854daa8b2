package loader

import (
	"errors"
	"testing"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func bitmapDisplay() []c64.Window {
	// bank 1, bitmap mode, screen at $5c00 and bitmap at $6000
	return c64.DisplayWindows(1, 0x3b, 0xc8, 0x78)
}

func TestScheduleLoadDisplayHazard(t *testing.T) {
	c := New(log.NewTestLogger(t))
	assert.NoError(t, c.SetDisplay(bitmapDisplay()...))

	_, err := c.ScheduleLoad(0x6000, "bitmap", 0x1F40, false)
	assert.Error(t, err)

	var hazard *MemoryHazardError
	assert.True(t, errors.As(err, &hazard))
	assert.Equal(t, BitmapRange, hazard.Conflict.Kind)
	assert.Equal(t, uint16(0x6000), hazard.Conflict.Start)
	assert.Equal(t, 0x1F40, hazard.Conflict.Length)
	assert.False(t, hazard.Read)
	assert.ErrorContains(t, err, "display bitmap")
	assert.Len(t, c.Requests(), 0)
}

func TestDisplayOfPendingLoad(t *testing.T) {
	c := New(log.NewTestLogger(t))
	_, err := c.ScheduleLoad(0x6000, "bitmap", 0x1F40, false)
	assert.NoError(t, err)

	err = c.SetDisplay(bitmapDisplay()...)
	var hazard *MemoryHazardError
	assert.True(t, errors.As(err, &hazard))
	assert.Equal(t, "bitmap", hazard.Asset)
	assert.Equal(t, BitmapRange, hazard.Conflict.Kind)
	assert.ErrorContains(t, err, "overlaps display bitmap")

	// the rejected display is not applied
	_, ok := c.Live().Conflict(0x6000, 1)
	assert.False(t, ok)

	c.YieldPoint()
	assert.NoError(t, c.SetDisplay(bitmapDisplay()...))
}

func TestScheduleLoadLiveRanges(t *testing.T) {
	tests := []struct {
		name        string
		destination uint16
		length      int
		kind        RangeKind
		hazard      bool
	}{
		{name: "free memory", destination: 0x2000, length: 0x1000},
		{name: "ends below screen", destination: 0x5800, length: 0x400},
		{name: "last byte on screen", destination: 0x5800, length: 0x401, kind: ScreenRange, hazard: true},
		{name: "after bitmap", destination: 0x7f40, length: 0x40},
		{name: "stack", destination: 0x0180, length: 0x10, kind: SystemRange, hazard: true},
		{name: "i/o", destination: 0xd800, length: 1000, kind: ReservedRange, hazard: true},
		{name: "music", destination: 0x1080, length: 0x10, kind: MusicRange, hazard: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(log.NewTestLogger(t))
			assert.NoError(t, c.SetDisplay(bitmapDisplay()...))
			c.MarkLive(Range{Start: 0x1000, Length: 0x1000, Kind: MusicRange, Owner: "music"})

			_, err := c.ScheduleLoad(tt.destination, "data", tt.length, false)
			if !tt.hazard {
				assert.NoError(t, err)
				return
			}
			var hazard *MemoryHazardError
			assert.True(t, errors.As(err, &hazard))
			assert.Equal(t, tt.kind, hazard.Conflict.Kind)
		})
	}
}

func TestScheduleLoadInvalid(t *testing.T) {
	tests := []struct {
		name        string
		destination uint16
		asset       string
		offset      int
		length      int
		reason      string
	}{
		{name: "zero length", destination: 0x2000, asset: "a", length: 0, reason: "length must be positive"},
		{name: "negative length", destination: 0x2000, asset: "a", length: -1, reason: "length must be positive"},
		{name: "wraps", destination: 0xff00, asset: "a", length: 0x101, reason: "ends after $ffff"},
		{name: "no asset", destination: 0x2000, length: 1, reason: "missing asset name"},
		{name: "negative offset", destination: 0x2000, asset: "a", offset: -2, length: 1, reason: "negative offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(log.NewTestLogger(t))
			_, err := c.ScheduleChunk(tt.destination, tt.asset, tt.offset, tt.length, false)

			var invalid *InvalidRequestError
			assert.True(t, errors.As(err, &invalid))
			assert.ErrorContains(t, err, tt.reason)
		})
	}
}

func TestScheduleLoadEndOfMemory(t *testing.T) {
	c := New(log.NewTestLogger(t))
	req, err := c.ScheduleLoad(0xff00, "vectors", 0x100, false)
	assert.NoError(t, err)
	assert.Equal(t, 0x10000, req.Range().End())
}

func TestLoadGroups(t *testing.T) {
	c := New(log.NewTestLogger(t))

	first, err := c.ScheduleLoad(0x2000, "font", 0x800, true)
	assert.NoError(t, err)
	second, err := c.ScheduleLoad(0x2800, "screen", 0x400, false)
	assert.NoError(t, err)
	third, err := c.ScheduleLoad(0x8000, "code", 0x1000, false)
	assert.NoError(t, err)

	assert.Equal(t, 0, first.Group)
	assert.Equal(t, 0, second.Group)
	assert.Equal(t, 1, third.Group)
	assert.Len(t, c.Groups(), 2)
	assert.Len(t, c.Pending(), 3)

	completed := c.YieldPoint()
	assert.Len(t, completed, 2)
	assert.True(t, first.Complete)
	assert.True(t, second.Complete)
	assert.False(t, third.Complete)

	completed = c.YieldPoint()
	assert.Len(t, completed, 1)
	assert.True(t, third.Complete)

	assert.Len(t, c.YieldPoint(), 0)
	assert.Len(t, c.Pending(), 0)
}

func TestLoadGroupClosedByYield(t *testing.T) {
	c := New(log.NewTestLogger(t))

	_, err := c.ScheduleLoad(0x2000, "a", 0x100, true)
	assert.NoError(t, err)
	assert.Len(t, c.YieldPoint(), 1)

	// the open group was completed, a new request starts a new group
	req, err := c.ScheduleLoad(0x3000, "b", 0x100, false)
	assert.NoError(t, err)
	assert.Equal(t, 1, req.Group)
}

func TestPendingLoadHazards(t *testing.T) {
	c := New(log.NewTestLogger(t))

	_, err := c.ScheduleLoad(0x8000, "tables", 0x200, false)
	assert.NoError(t, err)

	_, err = c.ScheduleLoad(0x81ff, "more", 0x10, false)
	var hazard *MemoryHazardError
	assert.True(t, errors.As(err, &hazard))
	assert.Equal(t, LoadRange, hazard.Conflict.Kind)
	assert.Equal(t, "tables", hazard.Conflict.Owner)

	err = c.CheckRead(0x8100, 0x100)
	assert.True(t, errors.As(err, &hazard))
	assert.True(t, hazard.Read)
	assert.ErrorContains(t, err, "before the load of 'tables'")

	assert.NoError(t, c.CheckRead(0x8200, 0x100))

	c.YieldPoint()
	assert.NoError(t, c.CheckRead(0x8100, 0x100))
	_, err = c.ScheduleLoad(0x81ff, "more", 0x10, false)
	assert.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	c := New(log.NewTestLogger(t))
	assert.NoError(t, c.SetDisplay(bitmapDisplay()...))
	_, err := c.ScheduleLoad(0x8000, "next", 0x100, false)
	assert.NoError(t, err)

	snapshot := c.Snapshot(3, "intro")
	assert.Equal(t, 3, snapshot.Step)
	assert.Len(t, snapshot.Ranges, 5)
	assert.Equal(t, SystemRange, snapshot.Ranges[0].Kind)
	assert.Equal(t, ScreenRange, snapshot.Ranges[1].Kind)
	assert.Equal(t, BitmapRange, snapshot.Ranges[2].Kind)
	assert.Equal(t, LoadRange, snapshot.Ranges[3].Kind)
	assert.Equal(t, PageLoaded, snapshot.Pages[0x80])

	assert.NoError(t, c.SetDisplay())
	c.YieldPoint()
	snapshot = c.Snapshot(4, "")
	assert.Len(t, snapshot.Ranges, 2)
	assert.Len(t, c.Snapshots(), 2)
}

func TestVerify(t *testing.T) {
	c := New(log.NewTestLogger(t))
	_, err := c.ScheduleLoad(0x3000, "part2", 0x2000, false)
	assert.NoError(t, err)

	assert.NoError(t, c.Verify(Range{Start: 0x0801, Length: 0x27ff, Kind: CodeRange, Owner: "part1"}))

	err = c.Verify(Range{Start: 0x0801, Length: 0x2800, Kind: CodeRange, Owner: "part1"})
	var hazard *MemoryHazardError
	assert.True(t, errors.As(err, &hazard))
	assert.Equal(t, "part2", hazard.Asset)
	assert.Equal(t, CodeRange, hazard.Conflict.Kind)
}
