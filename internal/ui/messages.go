// Package ui provides the Bubble Tea TUI for reacddit.
package ui

import "time"

// ListingLoaded is sent when an initial listing fetch finishes.
type ListingLoaded struct {
	Nav string
	Err error
}

// NewPosts is sent when a backward refresh finishes.
type NewPosts struct {
	Nav   string
	Count int
	Err   error
}

// FrameMsg drives the smooth-scroll animation.
type FrameMsg time.Time
