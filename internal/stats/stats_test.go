package stats

import (
	"testing"
	"time"

	"github.com/lgaudin/air-quality-service/internal/models"
)

func TestTracker_CountsAndTotal(t *testing.T) {
	var tr Tracker
	tr.Record(models.SourceSatellite)
	tr.Record(models.SourceSatellite)
	tr.Record(models.SourceGroundNetwork)
	tr.Record(models.SourceIntelligentFallback)

	counts := tr.Counts(time.Minute)
	if counts[models.SourceSatellite] != 2 {
		t.Errorf("satellite count = %d, want 2", counts[models.SourceSatellite])
	}
	if counts[models.SourceGroundNetwork] != 1 {
		t.Errorf("ground count = %d, want 1", counts[models.SourceGroundNetwork])
	}
	if got := tr.Total(time.Minute); got != 4 {
		t.Errorf("Total() = %d, want 4", got)
	}
}

func TestTracker_FallbackRate(t *testing.T) {
	var tr Tracker
	if got := tr.FallbackRate(time.Minute); got != 0 {
		t.Errorf("FallbackRate() = %v on empty tracker, want 0", got)
	}

	tr.Record(models.SourceSatellite)
	tr.Record(models.SourceIntelligentFallback)
	tr.Record(models.SourceIntelligentFallback)
	tr.Record(models.SourceIntelligentFallback)

	if got := tr.FallbackRate(time.Minute); got != 0.75 {
		t.Errorf("FallbackRate() = %v, want 0.75", got)
	}
}

func TestTracker_WindowExcludesOldEntries(t *testing.T) {
	var tr Tracker
	tr.Record(models.SourceSatellite)

	// A zero-length window excludes everything recorded before "now".
	time.Sleep(2 * time.Millisecond)
	if got := tr.Total(time.Nanosecond); got != 0 {
		t.Errorf("Total(1ns) = %d, want 0", got)
	}
	if got := tr.Total(time.Minute); got != 1 {
		t.Errorf("Total(1m) = %d, want 1", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	var tr Tracker
	tr.Record(models.SourceGroundNetwork)
	tr.Reset()
	if got := tr.Total(time.Hour); got != 0 {
		t.Errorf("Total() after Reset = %d, want 0", got)
	}
}

func TestDefaultTracker_PackageFuncs(t *testing.T) {
	Reset()
	defer Reset()

	Record(models.SourceSatellite)
	Record(models.SourceIntelligentFallback)

	if got := Total(time.Minute); got != 2 {
		t.Errorf("Total() = %d, want 2", got)
	}
	if got := FallbackRate(time.Minute); got != 0.5 {
		t.Errorf("FallbackRate() = %v, want 0.5", got)
	}
	if got := Counts(time.Minute)[models.SourceSatellite]; got != 1 {
		t.Errorf("Counts()[satellite] = %d, want 1", got)
	}
}
