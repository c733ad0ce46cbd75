package entity

import "math"

// ComputeProgress derives a workflow's completion percentage from its task
// set: round(100 * completed / total), or 0 for an empty task set.
func ComputeProgress(tasks []*Task) int {
	if len(tasks) == 0 {
		return 0
	}

	completed := 0
	for _, t := range tasks {
		if t.Status == TaskComplete {
			completed++
		}
	}

	return int(math.Round(100 * float64(completed) / float64(len(tasks))))
}
