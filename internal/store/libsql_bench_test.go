package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rendis/cog-hubspot/pkg/schema"
)

func newBenchStore(b *testing.B) *LibSQLStore {
	b.Helper()
	dir := b.TempDir()
	s, err := NewLibSQLStore("file:" + dir + "/bench.db")
	if err != nil {
		b.Fatal(err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = s.Close() })
	return s
}

func BenchmarkAppendRun_Sequential(b *testing.B) {
	s := newBenchStore(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.AppendRun(ctx, &Run{
			ID:      uuid.New().String(),
			StepID:  "ContactFieldEquals",
			Outcome: schema.OutcomePassed,
			Message: "bench",
		}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkListRuns_ByStep(b *testing.B) {
	s := newBenchStore(b)
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		stepID := "ContactFieldEquals"
		if i%2 == 0 {
			stepID = "DeleteContactStep"
		}
		if err := s.AppendRun(ctx, &Run{ID: uuid.New().String(), StepID: stepID, Outcome: schema.OutcomePassed, Message: "seed"}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.ListRuns(ctx, RunFilter{StepID: "ContactFieldEquals", Limit: 50}); err != nil {
			b.Fatal(err)
		}
	}
}
