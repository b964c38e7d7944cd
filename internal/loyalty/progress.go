package loyalty

// ProgressInfo describes where a balance sits in the milestone table.
// CurrentMilestone is 0 until the first threshold is reached; NextMilestone
// is 0 once the top threshold is met (there is no threshold beyond the
// configured table).
type ProgressInfo struct {
	CurrentMilestone   int `json:"current_milestone"`
	NextMilestone      int `json:"next_milestone"`
	PointsToNext       int `json:"points_to_next"`
	ProgressPercentage int `json:"progress_percentage"`
}

// Progress computes the nearest achieved threshold, the next unmet one, the
// points remaining, and the rounded percentage within that sub-range.
func (c Config) Progress(currentPoints int) ProgressInfo {
	current, next := 0, 0
	for _, m := range c.Milestones {
		if m.Points <= currentPoints {
			current = m.Points
		} else {
			next = m.Points
			break
		}
	}

	if next == 0 {
		// Top threshold reached or exceeded.
		return ProgressInfo{CurrentMilestone: current, ProgressPercentage: 100}
	}

	span := next - current
	into := currentPoints - current
	return ProgressInfo{
		CurrentMilestone:   current,
		NextMilestone:      next,
		PointsToNext:       next - currentPoints,
		ProgressPercentage: (into*100 + span/2) / span,
	}
}
