package entity

import (
	"math"
	"math/rand"
	"testing"
)

func tasksWithCompleted(total, completed int) []*Task {
	tasks := make([]*Task, 0, total)
	for i := 0; i < total; i++ {
		status := TaskInProgress
		if i < completed {
			status = TaskComplete
		}
		tasks = append(tasks, &Task{
			ID:         "t",
			WorkflowID: "wf",
			Name:       "task",
			Status:     status,
			Order:      i + 1,
		})
	}
	return tasks
}

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		completed int
		want      int
	}{
		{
			name:      "no tasks",
			total:     0,
			completed: 0,
			want:      0,
		},
		{
			name:      "none complete",
			total:     5,
			completed: 0,
			want:      0,
		},
		{
			name:      "all complete",
			total:     5,
			completed: 5,
			want:      100,
		},
		{
			name:      "four of six rounds to 67",
			total:     6,
			completed: 4,
			want:      67,
		},
		{
			name:      "one of three rounds to 33",
			total:     3,
			completed: 1,
			want:      33,
		},
		{
			name:      "one of two",
			total:     2,
			completed: 1,
			want:      50,
		},
		{
			name:      "five of six rounds to 83",
			total:     6,
			completed: 5,
			want:      83,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeProgress(tasksWithCompleted(tt.total, tt.completed))
			if got != tt.want {
				t.Errorf("ComputeProgress(%d/%d) = %d, want %d", tt.completed, tt.total, got, tt.want)
			}
		})
	}
}

func TestComputeProgress_OnlyCompleteCounts(t *testing.T) {
	tasks := []*Task{
		{Status: TaskComplete, Order: 1},
		{Status: TaskInProgress, Order: 2},
		{Status: TaskPendingReview, Order: 3},
		{Status: TaskBlocked, Order: 4},
	}

	if got := ComputeProgress(tasks); got != 25 {
		t.Errorf("ComputeProgress = %d, want 25: only COMPLETE tasks count", got)
	}
}

func TestComputeProgress_Randomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		total := rng.Intn(40) + 1
		completed := rng.Intn(total + 1)

		got := ComputeProgress(tasksWithCompleted(total, completed))
		want := int(math.Round(100 * float64(completed) / float64(total)))

		if got != want {
			t.Fatalf("ComputeProgress(%d/%d) = %d, want %d", completed, total, got, want)
		}
		if got < 0 || got > 100 {
			t.Fatalf("ComputeProgress(%d/%d) = %d, out of range", completed, total, got)
		}
		if completed == total && got != 100 {
			t.Fatalf("all tasks complete but progress = %d", got)
		}
		if completed == 0 && got != 0 {
			t.Fatalf("no tasks complete but progress = %d", got)
		}
	}
}
