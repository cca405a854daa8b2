// Package loader coordinates the streaming loader with the code of a part.
// It tracks the memory that is live at each point of the background stream,
// rejects loads into that memory, groups chained requests into yield points
// and writes the loader script used for disk packaging.
package loader

import (
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrogolib/log"
)

// Request is a unit of data that the loader places in memory.
type Request struct {
	Destination uint16
	Asset       string
	Offset      int // offset inside of the asset
	Length      int
	// KeepLoading lets the loader continue with the next request without
	// waiting for another yield point.
	KeepLoading bool
	Group       int
	Complete    bool
}

// Range returns the destination range of the request.
func (r *Request) Range() Range {
	return Range{Start: r.Destination, Length: r.Length, Kind: LoadRange, Owner: r.Asset}
}

// Snapshot is the live memory of one step of the background stream.
type Snapshot struct {
	Step   int
	Label  string
	Ranges []Range
	Pages  PageTable
}

// Coordinator tracks the load requests and live memory of a part.
type Coordinator struct {
	logger *log.Logger
	live   *LiveMap

	requests  []*Request
	groups    [][]*Request
	open      bool // last group is continued by the next request
	completed int  // number of completed groups
	snapshots []Snapshot
}

// New returns a coordinator with a live map containing the system areas.
func New(logger *log.Logger) *Coordinator {
	return &Coordinator{
		logger: logger,
		live:   NewLiveMap(),
	}
}

// Live returns the current live map.
func (c *Coordinator) Live() *LiveMap {
	return c.live
}

// MarkLive adds a range that stays live for the rest of the part, like
// music or code.
func (c *Coordinator) MarkLive(r Range) {
	c.live.Add(r)
}

// SetDisplay replaces the display ranges of the live map. A window that
// shows the destination of a pending request is a MemoryHazardError, the
// loader would stream into displayed memory.
func (c *Coordinator) SetDisplay(windows ...c64.Window) error {
	for _, w := range windows {
		window := windowRange(w)
		for _, pending := range c.Pending() {
			if window.Overlaps(pending.Destination, pending.Length) {
				return &MemoryHazardError{
					Asset:    pending.Asset,
					Start:    pending.Destination,
					Length:   pending.Length,
					Conflict: window,
				}
			}
		}
	}
	c.live.SetDisplay(windows...)
	return nil
}

// ScheduleLoad queues a load of the start of an asset.
func (c *Coordinator) ScheduleLoad(destination uint16, asset string, length int, keepLoading bool) (*Request, error) {
	return c.ScheduleChunk(destination, asset, 0, length, keepLoading)
}

// ScheduleChunk queues a load of a part of an asset. The destination must
// not overlap live memory or the destination of another pending request.
// A request joins the group of the previous request if that one was
// flagged to keep loading.
func (c *Coordinator) ScheduleChunk(destination uint16, asset string, offset, length int, keepLoading bool) (*Request, error) {
	if err := checkRequest(destination, asset, offset, length); err != nil {
		return nil, err
	}

	if conflict, ok := c.live.Conflict(destination, length); ok {
		return nil, &MemoryHazardError{Asset: asset, Start: destination, Length: length, Conflict: conflict}
	}
	for _, pending := range c.Pending() {
		if r := pending.Range(); r.Overlaps(destination, length) {
			return nil, &MemoryHazardError{Asset: asset, Start: destination, Length: length, Conflict: r}
		}
	}

	req := &Request{
		Destination: destination,
		Asset:       asset,
		Offset:      offset,
		Length:      length,
		KeepLoading: keepLoading,
	}
	if c.open {
		last := len(c.groups) - 1
		req.Group = last
		c.groups[last] = append(c.groups[last], req)
	} else {
		req.Group = len(c.groups)
		c.groups = append(c.groups, []*Request{req})
	}
	c.open = keepLoading
	c.requests = append(c.requests, req)

	c.logger.Debug("Scheduled load",
		log.String("asset", asset),
		log.Hex("destination", destination),
		log.Int("length", length),
		log.Int("group", req.Group))
	return req, nil
}

// YieldPoint hands control to the loader until the next group of requests
// is loaded. It returns the completed requests, nil if nothing is pending.
func (c *Coordinator) YieldPoint() []*Request {
	if c.completed >= len(c.groups) {
		return nil
	}

	group := c.groups[c.completed]
	for _, req := range group {
		req.Complete = true
	}
	if c.completed == len(c.groups)-1 {
		c.open = false
	}
	c.completed++

	c.logger.Debug("Completed load group", log.Int("group", group[0].Group), log.Int("requests", len(group)))
	return group
}

// CheckRead returns a MemoryHazardError if the range is the destination of
// a request that has not completed yet.
func (c *Coordinator) CheckRead(start uint16, length int) error {
	for _, pending := range c.Pending() {
		if r := pending.Range(); r.Overlaps(start, length) {
			return &MemoryHazardError{Start: start, Length: length, Conflict: r, Read: true}
		}
	}
	return nil
}

// Snapshot records the current live memory for a step of the background
// stream. Pending load destinations are included.
func (c *Coordinator) Snapshot(step int, label string) Snapshot {
	live := c.live.Clone()
	for _, pending := range c.Pending() {
		live.Add(pending.Range())
	}
	snapshot := Snapshot{
		Step:   step,
		Label:  label,
		Ranges: live.Ranges(),
		Pages:  live.Pages(),
	}
	c.snapshots = append(c.snapshots, snapshot)
	return snapshot
}

// Snapshots returns all recorded snapshots in recording order.
func (c *Coordinator) Snapshots() []Snapshot {
	return c.snapshots
}

// Requests returns all requests in scheduling order.
func (c *Coordinator) Requests() []*Request {
	return c.requests
}

// Groups returns the request groups in loading order.
func (c *Coordinator) Groups() [][]*Request {
	return c.groups
}

// Pending returns the requests that are not complete.
func (c *Coordinator) Pending() []*Request {
	var pending []*Request
	for _, req := range c.requests {
		if !req.Complete {
			pending = append(pending, req)
		}
	}
	return pending
}

// Verify checks all requests against ranges that are only known after the
// layout, like the code and includes of the part.
func (c *Coordinator) Verify(ranges ...Range) error {
	for _, req := range c.requests {
		for _, r := range ranges {
			if r.Overlaps(req.Destination, req.Length) {
				return &MemoryHazardError{Asset: req.Asset, Start: req.Destination, Length: req.Length, Conflict: r}
			}
		}
	}
	return nil
}

func checkRequest(destination uint16, asset string, offset, length int) error {
	switch {
	case asset == "":
		return &InvalidRequestError{Asset: asset, Reason: "missing asset name"}
	case length <= 0:
		return &InvalidRequestError{Asset: asset, Reason: "length must be positive"}
	case offset < 0:
		return &InvalidRequestError{Asset: asset, Reason: "negative offset"}
	case int(destination)+length > 0x10000:
		return &InvalidRequestError{Asset: asset, Reason: "destination range ends after $ffff"}
	}
	return nil
}
