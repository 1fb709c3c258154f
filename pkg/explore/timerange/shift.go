package timerange

import (
	"explore-state-be/pkg/explore/model"
)

// Shift moves the range by half its span. Negative direction moves back in
// time. A forward shift never ends past nowMs while the range started before
// it.
func Shift(abs model.AbsoluteTimeRange, direction int, nowMs int64) model.AbsoluteTimeRange {
	offset := abs.Span() / 2
	if direction < 0 {
		return model.AbsoluteTimeRange{From: abs.From - offset, To: abs.To - offset}
	}

	shifted := model.AbsoluteTimeRange{From: abs.From + offset, To: abs.To + offset}
	if shifted.To > nowMs && abs.To < nowMs {
		return model.AbsoluteTimeRange{From: nowMs - abs.Span(), To: nowMs}
	}
	return shifted
}

// Previous is the window of equal span that ends where abs starts.
func Previous(abs model.AbsoluteTimeRange) model.AbsoluteTimeRange {
	return model.AbsoluteTimeRange{From: abs.From - abs.Span(), To: abs.From}
}

// ZoomOut widens the range around its center by factor, keeping the upper
// bound at or before nowMs.
func ZoomOut(abs model.AbsoluteTimeRange, factor float64, nowMs int64) model.AbsoluteTimeRange {
	if factor <= 1 {
		factor = 2
	}
	span := abs.Span()
	center := abs.To - span/2
	half := int64(float64(span) * factor / 2)

	zoomed := model.AbsoluteTimeRange{From: center - half, To: center + half}
	if zoomed.To > nowMs && abs.To <= nowMs {
		zoomed.From -= zoomed.To - nowMs
		zoomed.To = nowMs
	}
	return zoomed
}
