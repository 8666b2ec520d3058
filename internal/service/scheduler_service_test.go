package service

import (
	"context"
	"testing"
	"time"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("07:05")
	if err != nil {
		t.Fatalf("buildDailySpec: %v", err)
	}
	if spec != "0 5 7 * * *" {
		t.Fatalf("unexpected spec %q", spec)
	}
	for _, bad := range []string{"7", "24:00", "12:60", "ab:cd"} {
		if _, err := buildDailySpec(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSchedulerServiceRunsIntervalJob(t *testing.T) {
	s := NewSchedulerService(time.UTC, time.Second)
	ran := make(chan struct{}, 1)
	if _, err := s.ScheduleInterval("probe", time.Second, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("job context has no deadline")
		}
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("ScheduleInterval: %v", err)
	}
	if _, err := s.ScheduleInterval("bad", 0, nil); err == nil {
		t.Fatalf("expected error for zero interval")
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("interval job did not run")
	}
}
