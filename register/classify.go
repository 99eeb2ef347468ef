package register

// Classify returns a copy of waypoints labelled relative to current:
// completed before it, current_goal at it, unfinished after it. The index is
// not range-checked; an index past the end marks everything completed and a
// negative one marks everything unfinished.
func Classify(waypoints []Waypoint, current int) []Waypoint {
	out := make([]Waypoint, len(waypoints))
	for i, wp := range waypoints {
		switch {
		case i < current:
			wp.Classification = Completed
		case i == current:
			wp.Classification = CurrentGoal
		default:
			wp.Classification = Unfinished
		}
		out[i] = wp
	}
	return out
}
