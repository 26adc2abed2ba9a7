package failure

import (
	"errors"
	"fmt"
	"testing"
)

var errRoot = errors.New("connection refused")

func TestKindOf_WalksWrappedChain(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("submit: %w", Transport("create ride", "Could not reach the server.", errRoot))

	if KindOf(err) != KindTransport {
		t.Fatalf("expected transport, got %s", KindOf(err))
	}
	if !errors.Is(err, errRoot) {
		t.Error("expected root cause to be reachable")
	}
	if UserMessage(err) != "Could not reach the server." {
		t.Errorf("unexpected message %q", UserMessage(err))
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	t.Parallel()

	if KindOf(errRoot) != KindUnknown {
		t.Errorf("expected unknown kind")
	}
	if Is(nil, KindUnknown) {
		t.Errorf("nil error must not match any kind")
	}
	if UserMessage(errRoot) == "" {
		t.Errorf("expected a fallback message")
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err  *Error
		want string
	}{
		{Validation("submit", "Pick both points.", nil), "submit: Pick both points."},
		{Protocol("list rides", "", errRoot), "list rides: connection refused"},
		{StateConflict("accept", "Ride taken.", errRoot), "accept: Ride taken.: connection refused"},
	}

	for _, tc := range testCases {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}
