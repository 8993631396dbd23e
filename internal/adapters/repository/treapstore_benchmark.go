package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func seedStore(b *testing.B, store *TreapStore, users int) {
	b.Helper()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < users; i++ {
		id := fmt.Sprintf("user%07d", i)
		streak := rng.Intn(365)
		if _, err := store.Update(ctx, id, streak, streak); err != nil {
			b.Fatalf("seed failed: %v", err)
		}
	}
}

func BenchmarkTreapStore_Update(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(time.Hour))
	defer store.Close()
	seedStore(b, store, 100_000)

	rng := rand.New(rand.NewSource(99))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("user%07d", rng.Intn(100_000))
		streak := rng.Intn(365)
		if _, err := store.Update(ctx, id, streak, streak); err != nil {
			b.Fatalf("update failed: %v", err)
		}
	}
}

func BenchmarkTreapStore_TopN(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(time.Hour))
	defer store.Close()
	seedStore(b, store, 100_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.TopN(ctx, 100); err != nil {
			b.Fatalf("topn failed: %v", err)
		}
	}
}

func BenchmarkTreapStore_Rank(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(time.Hour))
	defer store.Close()
	seedStore(b, store, 10_000)

	rng := rand.New(rand.NewSource(7))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("user%07d", rng.Intn(10_000))
		if _, err := store.Rank(ctx, id); err != nil {
			b.Fatalf("rank failed: %v", err)
		}
	}
}

func BenchmarkTreapStore_MixedWorkload(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(time.Hour))
	defer store.Close()
	seedStore(b, store, 50_000)

	b.RunParallel(func(pb *testing.PB) {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			id := fmt.Sprintf("user%07d", rng.Intn(50_000))
			switch rng.Intn(10) {
			case 0, 1, 2:
				streak := rng.Intn(365)
				_, _ = store.Update(ctx, id, streak, streak)
			case 3:
				_, _ = store.Rank(ctx, id)
			default:
				_, _ = store.TopN(ctx, 50)
			}
		}
	})
}
