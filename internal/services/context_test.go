package services_test

import (
	"context"
	"testing"

	"dancebreak/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBreakdownID(ctx, 42)
	ctx = services.WithSourceIdentity(ctx, "ext://sample")
	ctx = services.WithStage(ctx, "segment")
	ctx = services.WithJobID(ctx, "job-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.BreakdownIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected breakdown id: %v %v", id, ok)
	}
	if v, ok := services.SourceIdentityFromContext(ctx); !ok || v != "ext://sample" {
		t.Fatalf("unexpected identity: %q %v", v, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "segment" {
		t.Fatalf("unexpected stage: %q %v", stage, ok)
	}
	if v, ok := services.JobIDFromContext(ctx); !ok || v != "job-1" {
		t.Fatalf("unexpected job id: %q %v", v, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %q %v", rid, ok)
	}
}

func TestEmptyValuesAreIgnored(t *testing.T) {
	ctx := services.WithStage(context.Background(), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected empty stage to be ignored")
	}
	if _, ok := services.BreakdownIDFromContext(context.Background()); ok {
		t.Fatal("expected missing breakdown id")
	}
}
