package position

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ridehail/internal/domain"
	"ridehail/internal/failure"
)

var bangalore = domain.Geopoint{Latitude: 12.9716, Longitude: 77.5946}

type fakeUploader struct {
	mu     sync.Mutex
	calls  int32
	points []domain.Geopoint
	err    error
}

func (f *fakeUploader) UpdateDriverLocation(ctx context.Context, driverID string, point domain.Geopoint) error {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.points = append(f.points, point)
	f.mu.Unlock()
	return f.err
}

func (f *fakeUploader) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func TestCapture_DeniedThenReportHasNoPosition(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	r := NewReporter(FixedLocator{Err: ErrPermissionDenied}, uploader, 0, nil)

	_, err := r.Capture(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if !failure.Is(err, failure.KindCapability) {
		t.Errorf("expected capability failure, got %s", failure.KindOf(err))
	}

	err = r.Report(context.Background(), "d1")
	if !errors.Is(err, ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}
	if uploader.Calls() != 0 {
		t.Errorf("expected no upload, got %d", uploader.Calls())
	}
}

func TestCapture_PassesFreshFixOptions(t *testing.T) {
	t.Parallel()

	var got Options
	locator := LocatorFunc(func(ctx context.Context, opts Options) (Fix, error) {
		got = opts
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a deadline on the capture context")
		}
		return Fix{Point: bangalore, CapturedAt: time.Now()}, nil
	})

	r := NewReporter(locator, &fakeUploader{}, 0, nil)
	if _, err := r.Capture(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Timeout != 10*time.Second {
		t.Errorf("expected 10s timeout, got %s", got.Timeout)
	}
	if got.MaximumAge != 0 || !got.HighAccuracy {
		t.Errorf("expected fresh high accuracy fix, got %+v", got)
	}
}

func TestCapture_Timeout(t *testing.T) {
	t.Parallel()

	locator := LocatorFunc(func(ctx context.Context, _ Options) (Fix, error) {
		<-ctx.Done()
		return Fix{}, ctx.Err()
	})

	r := NewReporter(locator, &fakeUploader{}, 20*time.Millisecond, nil)
	_, err := r.Capture(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
	if !failure.Is(err, failure.KindCapability) {
		t.Errorf("expected capability failure, got %s", failure.KindOf(err))
	}
}

func TestCapture_Unavailable(t *testing.T) {
	t.Parallel()

	r := NewReporter(nil, &fakeUploader{}, 0, nil)
	if _, err := r.Capture(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCapture_RejectsStaleFix(t *testing.T) {
	t.Parallel()

	locator := LocatorFunc(func(context.Context, Options) (Fix, error) {
		return Fix{Point: bangalore, CapturedAt: time.Now().Add(-time.Minute)}, nil
	})

	r := NewReporter(locator, &fakeUploader{}, 0, nil)
	if _, err := r.Capture(context.Background()); !errors.Is(err, ErrStaleFix) {
		t.Errorf("expected ErrStaleFix, got %v", err)
	}
	if _, ok := r.Last("d1"); ok {
		t.Error("a stale fix must not be remembered")
	}
}

func TestReport_UploadsLastFix(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	r := NewReporter(FixedLocator{Point: bangalore}, uploader, 0, nil)

	point, err := r.CaptureAndReport(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point != bangalore {
		t.Errorf("expected %v, got %v", bangalore, point)
	}
	if uploader.Calls() != 1 || uploader.points[0] != bangalore {
		t.Errorf("expected one upload of %v, got %v", bangalore, uploader.points)
	}

	pos, ok := r.Last("d1")
	if !ok || pos.DriverID != "d1" || pos.Location != bangalore || pos.CapturedAt.IsZero() {
		t.Errorf("unexpected last position %+v (ok=%v)", pos, ok)
	}
}

func TestReport_FailureIsSurfacedNotRetried(t *testing.T) {
	t.Parallel()

	cause := failure.Transport("update driver location", "Could not reach the server.", errors.New("refused"))
	uploader := &fakeUploader{err: cause}
	r := NewReporter(FixedLocator{Point: bangalore}, uploader, 0, nil)

	if _, err := r.Capture(context.Background()); err != nil {
		t.Fatalf("capture: %v", err)
	}
	err := r.Report(context.Background(), "d1")
	if !errors.Is(err, ErrReportFailed) || !failure.Is(err, failure.KindTransport) {
		t.Errorf("expected wrapped transport failure, got %v", err)
	}
	if uploader.Calls() != 1 {
		t.Errorf("expected exactly one attempt, got %d", uploader.Calls())
	}
}

func TestClear_ForgetsFix(t *testing.T) {
	t.Parallel()

	r := NewReporter(FixedLocator{Point: bangalore}, &fakeUploader{}, 0, nil)
	if _, err := r.Capture(context.Background()); err != nil {
		t.Fatalf("capture: %v", err)
	}

	r.Clear()
	if err := r.Report(context.Background(), "d1"); !errors.Is(err, ErrNoPosition) {
		t.Errorf("expected ErrNoPosition after clear, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	uploader := &fakeUploader{}
	r := NewReporter(FixedLocator{Point: bangalore}, uploader, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, "d1", 5*time.Millisecond)
	}()

	deadline := time.After(2 * time.Second)
	for uploader.Calls() < 2 {
		select {
		case <-deadline:
			t.Fatal("expected at least two reports")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := r.Run(context.Background(), "d1", 0); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("expected ErrInvalidInterval, got %v", err)
	}
}
