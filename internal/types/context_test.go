package types

import (
	"context"
	"testing"
)

func TestActorContextRoundTrip(t *testing.T) {
	actor := Actor{UserID: "u1", Email: "a@example.com"}
	ctx := WithActor(context.Background(), actor)

	got, ok := GetActor(ctx)
	if !ok {
		t.Fatal("GetActor() ok = false, want true")
	}
	if got != actor {
		t.Errorf("GetActor() = %+v, want %+v", got, actor)
	}
}

func TestGetActorMissing(t *testing.T) {
	_, ok := GetActor(context.Background())
	if ok {
		t.Error("GetActor() on an empty context should report absence")
	}
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-123")
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() on an empty context = %q, want empty", got)
	}
}
