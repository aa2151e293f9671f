package timeline

import "time"

// Clock is the time source for the fetch debounce and relative times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Cursor is the pagination state: how many fetches are in flight, the anchor
// id of the latest one and the tick of the last applied page.
type Cursor struct {
	clock      Clock
	resolution time.Duration
	pending    int
	anchor     string
	lastFetch  time.Time
}

// NewCursor starts with the last fetch at the current tick, so the view
// cannot ask for more until the clock moves on.
func NewCursor(clock Clock, resolution time.Duration) *Cursor {
	if clock == nil {
		clock = systemClock{}
	}
	if resolution <= 0 {
		resolution = time.Second
	}
	c := &Cursor{clock: clock, resolution: resolution}
	c.Touch()
	return c
}

func (c *Cursor) tick() time.Time { return c.clock.Now().Truncate(c.resolution) }

// Begin moves to Fetching. anchor is empty for a head fetch.
func (c *Cursor) Begin(anchor string) {
	if c.pending > 0 {
		anchor = ""
	}
	c.pending++
	c.anchor = anchor
}

// Finish accounts for one completion and returns the anchor it answers. The
// cursor stays Fetching until every outstanding fetch has completed.
// Completions carry no anchor, so while two fetches overlap the answer is
// empty (a head fetch) for each of them.
func (c *Cursor) Finish() string {
	if c.pending == 0 {
		return ""
	}
	c.pending--
	if c.pending > 0 {
		return ""
	}
	anchor := c.anchor
	c.anchor = ""
	return anchor
}

// Touch records the current tick as the last fetch.
func (c *Cursor) Touch() { c.lastFetch = c.tick() }

func (c *Cursor) Fetching() bool { return c.pending > 0 }

func (c *Cursor) LastFetch() time.Time { return c.lastFetch }

// CanFetchMore allows at most one fetch per clock tick and none while one is in flight.
func (c *Cursor) CanFetchMore() bool {
	if c.pending > 0 {
		return false
	}
	return c.tick().After(c.lastFetch)
}
