package fusion

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lgaudin/air-quality-service/internal/cache"
	"github.com/lgaudin/air-quality-service/internal/connector"
	"github.com/lgaudin/air-quality-service/internal/geo"
	"github.com/lgaudin/air-quality-service/internal/geocoder"
	"github.com/lgaudin/air-quality-service/internal/models"
)

var paris = models.Coordinate{Latitude: 48.8566, Longitude: 2.3522}

// stubConnector returns a canned measurement or error and counts calls.
type stubConnector struct {
	name  string
	m     models.Measurement
	err   error
	calls int32
	block time.Duration
}

func (s *stubConnector) Name() string { return s.name }

func (s *stubConnector) Fetch(ctx context.Context, c models.Coordinate) (models.Measurement, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.block > 0 {
		select {
		case <-time.After(s.block):
		case <-ctx.Done():
			return models.Measurement{}, ctx.Err()
		}
	}
	if s.err != nil {
		return models.Measurement{}, s.err
	}
	return s.m, nil
}

func newTestService(connectors []connector.Connector, fallback connector.Connector, coalesce time.Duration) *Service {
	g := geocoder.New("", 0, 0, geo.New(), zap.NewNop())
	return NewService(connectors, fallback, cache.NewInMemoryCache(100), g, 5*time.Minute, coalesce, zap.NewNop())
}

func satelliteStub() *stubConnector {
	return &stubConnector{
		name: "satellite",
		m:    models.Measurement{PM25: 17, NO2: 19, O3: 53.5, Source: models.SourceSatellite, Confidence: 0.85},
	}
}

func fallbackStub() *stubConnector {
	return &stubConnector{
		name: "intelligent_fallback",
		m:    models.Measurement{PM25: 12, NO2: 20, O3: 40, Source: models.SourceIntelligentFallback, Confidence: 0.5},
	}
}

func TestGetSnapshot_FirstSourceWins(t *testing.T) {
	sat := satelliteStub()
	ground := &stubConnector{name: "ground_network", m: models.Measurement{PM25: 99, Source: models.SourceGroundNetwork}}
	svc := newTestService([]connector.Connector{sat, ground}, fallbackStub(), 0)

	snap, err := svc.GetSnapshot(context.Background(), paris)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if snap.Measurement.Source != models.SourceSatellite {
		t.Errorf("Source = %q, want satellite", snap.Measurement.Source)
	}
	if atomic.LoadInt32(&ground.calls) != 0 {
		t.Errorf("ground connector called %d times, want 0", ground.calls)
	}
}

func TestGetSnapshot_CascadesPastUnavailable(t *testing.T) {
	sat := &stubConnector{name: "satellite", err: connector.ErrUnavailable}
	ground := &stubConnector{name: "ground_network", err: connector.ErrUnavailable}
	fb := fallbackStub()
	svc := newTestService([]connector.Connector{sat, ground}, fb, 0)

	snap, err := svc.GetSnapshot(context.Background(), paris)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if snap.Measurement.Source != models.SourceIntelligentFallback {
		t.Errorf("Source = %q, want intelligent_fallback", snap.Measurement.Source)
	}
	if atomic.LoadInt32(&sat.calls) != 1 || atomic.LoadInt32(&ground.calls) != 1 {
		t.Errorf("cascade calls = %d/%d, want 1/1", sat.calls, ground.calls)
	}
}

func TestGetSnapshot_CachesResult(t *testing.T) {
	sat := satelliteStub()
	svc := newTestService([]connector.Connector{sat}, fallbackStub(), 0)

	first, err := svc.GetSnapshot(context.Background(), paris)
	if err != nil {
		t.Fatalf("first GetSnapshot() error = %v", err)
	}
	second, err := svc.GetSnapshot(context.Background(), paris)
	if err != nil {
		t.Fatalf("second GetSnapshot() error = %v", err)
	}
	if atomic.LoadInt32(&sat.calls) != 1 {
		t.Errorf("connector called %d times, want 1 (second lookup cached)", sat.calls)
	}
	if first.Measurement.PM25 != second.Measurement.PM25 {
		t.Errorf("cached snapshot differs: %v vs %v", first.Measurement.PM25, second.Measurement.PM25)
	}
}

func TestGetSnapshot_NearbyCoordinatesShareEntry(t *testing.T) {
	sat := satelliteStub()
	svc := newTestService([]connector.Connector{sat}, fallbackStub(), 0)

	// Both round to the 48.857,2.352 cell.
	if _, err := svc.GetSnapshot(context.Background(), models.Coordinate{Latitude: 48.8566, Longitude: 2.3522}); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if _, err := svc.GetSnapshot(context.Background(), models.Coordinate{Latitude: 48.85661, Longitude: 2.35219}); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if atomic.LoadInt32(&sat.calls) != 1 {
		t.Errorf("connector called %d times, want 1 for same cell", sat.calls)
	}
}

func TestGetSnapshot_ComputesAQI(t *testing.T) {
	sat := satelliteStub() // PM25 17 → AQI above 50 band floor
	svc := newTestService([]connector.Connector{sat}, fallbackStub(), 0)

	snap, err := svc.GetSnapshot(context.Background(), paris)
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if snap.Measurement.AQI <= 0 {
		t.Errorf("AQI = %d, want computed positive index", snap.Measurement.AQI)
	}
	if snap.Place.DisplayName != "Paris, France" {
		t.Errorf("DisplayName = %q, want Paris, France", snap.Place.DisplayName)
	}
}

func TestGetSnapshot_ContextExpiredBeforeFallback(t *testing.T) {
	sat := &stubConnector{name: "satellite", err: connector.ErrUnavailable}
	fb := fallbackStub()
	svc := newTestService([]connector.Connector{sat}, fb, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GetSnapshot(ctx, paris)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("GetSnapshot() error = %v, want context.Canceled", err)
	}
	if atomic.LoadInt32(&fb.calls) != 0 {
		t.Errorf("fallback called %d times after cancellation, want 0", fb.calls)
	}
}

func TestGetSnapshot_CoalescesConcurrentLookups(t *testing.T) {
	sat := satelliteStub()
	sat.block = 50 * time.Millisecond
	svc := newTestService([]connector.Connector{sat}, fallbackStub(), 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.GetSnapshot(context.Background(), paris); err != nil {
				t.Errorf("GetSnapshot() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&sat.calls); got != 1 {
		t.Errorf("connector called %d times for 8 concurrent lookups, want 1", got)
	}
}

func TestWarmPeriodic_StopsOnContextCancel(t *testing.T) {
	svc := newTestService([]connector.Connector{satelliteStub()}, fallbackStub(), 0)
	w := NewWarmer(svc, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.WarmPeriodic(ctx, []models.Coordinate{paris}, time.Hour)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("WarmPeriodic() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WarmPeriodic() did not stop after context cancellation")
	}
}

func TestWarmer_PopulatesCache(t *testing.T) {
	sat := satelliteStub()
	svc := newTestService([]connector.Connector{sat}, fallbackStub(), 0)
	w := NewWarmer(svc, zap.NewNop())

	coords := []models.Coordinate{
		{Latitude: 48.8566, Longitude: 2.3522},
		{Latitude: 40.7128, Longitude: -74.0060},
	}
	if err := w.Warm(context.Background(), coords); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	// Warmed entries serve without another connector call.
	before := atomic.LoadInt32(&sat.calls)
	if _, err := svc.GetSnapshot(context.Background(), coords[0]); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if atomic.LoadInt32(&sat.calls) != before {
		t.Error("warmed coordinate triggered another connector call")
	}
}
