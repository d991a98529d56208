package sizeladder

import (
	"github.com/sailfishos/nemo-qml-plugin-thumbnailer/internal/logging"
)

// Size is a canonical stored thumbnail edge length, in pixels.
type Size int

// None is the sentinel returned when no acceptable size exists.
const None Size = 0

// The fixed portion of the ladder. ScreenShort and ScreenLong are supplied
// at runtime by a Ladder since they depend on the device's display.
const (
	Small      Size = 128
	Medium     Size = 256
	Large      Size = 512
	ExtraLarge Size = 768
)

// Ladder resolves requested sizes against the fixed candidate sizes plus the
// two runtime-configured screen edges. ScreenShort must be <= ScreenLong;
// NewLadder swaps them if given in the wrong order.
type Ladder struct {
	ScreenShort Size
	ScreenLong  Size
}

// NewLadder builds a Ladder from device display dimensions, normalizing
// their order so ScreenShort <= ScreenLong regardless of which edge the
// caller passes first.
func NewLadder(screenWidth, screenHeight int) Ladder {
	short, long := Size(screenWidth), Size(screenHeight)
	if short > long {
		short, long = long, short
	}
	return Ladder{ScreenShort: short, ScreenLong: long}
}

func acceptableUnbounded(w, h int, crop bool, s Size) bool {
	sufficientWidth := int(s) >= w
	sufficientHeight := int(s) >= h
	if crop {
		return sufficientWidth && sufficientHeight
	}
	return sufficientWidth || sufficientHeight
}

func acceptableBounded(w, h int, s Size) bool {
	return int(s) <= w && int(s) <= h
}

// Select picks a stored size for the given requested dimensions, crop flag
// and bounded/unbounded policy. It always returns a concrete ladder value:
// unbounded mode falls back to ScreenLong, bounded mode falls back to Small,
// logging a warning in either case.
func (l Ladder) Select(w, h int, crop, unbounded bool) Size {
	if unbounded {
		return l.selectUnbounded(w, h, crop)
	}
	return l.selectBounded(w, h)
}

func (l Ladder) selectUnbounded(w, h int, crop bool) Size {
	candidates := [...]Size{Small, Medium, Large, ExtraLarge, l.ScreenShort}
	for _, s := range candidates {
		if acceptableUnbounded(w, h, crop, s) {
			return s
		}
	}
	if !acceptableUnbounded(w, h, crop, l.ScreenLong) {
		logging.Warn("sizeladder: no unbounded candidate fits requested size %dx%d (crop=%v); using ScreenLong", w, h, crop)
	}
	return l.ScreenLong
}

func (l Ladder) selectBounded(w, h int) Size {
	candidates := [...]Size{l.ScreenLong, l.ScreenShort, ExtraLarge, Large, Medium}
	for _, s := range candidates {
		if acceptableBounded(w, h, s) {
			return s
		}
	}
	if !acceptableBounded(w, h, Small) {
		logging.Warn("sizeladder: no bounded candidate fits requested size %dx%d; using Small", w, h)
	}
	return Small
}

// NextSize returns the ladder value adjacent to s in the walk direction
// implied by unbounded (upward when true, downward when false), or None if
// s is not on the ladder or is already the walk's last element.
func (l Ladder) NextSize(s Size, unbounded bool) Size {
	if unbounded {
		return nextIn([...]Size{Small, Medium, Large, ExtraLarge, l.ScreenShort, l.ScreenLong}, s)
	}
	return nextIn([...]Size{l.ScreenLong, l.ScreenShort, ExtraLarge, Large, Medium, Small}, s)
}

func nextIn(candidates [6]Size, s Size) Size {
	for i := 0; i < len(candidates)-1; i++ {
		if candidates[i] == s {
			return candidates[i+1]
		}
	}
	return None
}
