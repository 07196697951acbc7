package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/IMBotPlatform/imagestudio/pkg/kv"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// failingStore 在指定操作上返回错误。
type failingStore struct {
	kv.Store
	failGet, failSet, failClear bool
}

var errBoom = errors.New("boom")

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errBoom
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failSet {
		return errBoom
	}
	return s.Store.Set(ctx, key, value)
}

func (s *failingStore) Clear(ctx context.Context) error {
	if s.failClear {
		return errBoom
	}
	return s.Store.Clear(ctx)
}

func images(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestUpdateHistoryEmpty(t *testing.T) {
	ctx := context.Background()
	cache := New(kv.NewMemoryStore(), WithLogger(quietLogger))

	if err := cache.UpdateHistory(ctx, Batch{Images: []string{"a", "b", "c"}, Prompt: "p"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := cache.FetchHistory(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := []Record{
		{Image: "a", Prompt: "p", APIType: "anime"},
		{Image: "b", Prompt: "p", APIType: "anime"},
		{Image: "c", Prompt: "p", APIType: "anime"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateHistoryKeepsExplicitAPIType(t *testing.T) {
	ctx := context.Background()
	cache := New(kv.NewMemoryStore(), WithLogger(quietLogger))

	_ = cache.UpdateHistory(ctx, Batch{Images: []string{"a"}, Prompt: "p", APIType: "realistic"})
	got, _ := cache.FetchHistory(ctx)
	if len(got) != 1 || got[0].APIType != "realistic" {
		t.Fatalf("unexpected records %#v", got)
	}
}

func TestUpdateHistoryNewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	cache := New(kv.NewMemoryStore(), WithLogger(quietLogger))

	if err := cache.UpdateHistory(ctx, Batch{Images: images("old", 24), Prompt: "first"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := cache.UpdateHistory(ctx, Batch{Images: images("new", 4), Prompt: "second"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := cache.FetchHistory(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != DefaultLimit {
		t.Fatalf("expected %d records, got %d", DefaultLimit, len(got))
	}
	for i := 0; i < 4; i++ {
		if got[i].Image != fmt.Sprintf("new%d", i) {
			t.Fatalf("record %d = %q, want new%d", i, got[i].Image, i)
		}
	}
	// 24 old + 4 new: the 3 oldest (old21..old23) are dropped.
	if last := got[len(got)-1].Image; last != "old20" {
		t.Fatalf("unexpected oldest record %q", last)
	}
}

func TestUpdateHistoryLengthProperty(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct{ prev, added int }{
		{0, 0}, {0, 1}, {3, 4}, {21, 4}, {25, 1}, {0, 30}, {10, 25},
	} {
		t.Run(fmt.Sprintf("%d+%d", tc.prev, tc.added), func(t *testing.T) {
			cache := New(kv.NewMemoryStore(), WithLogger(quietLogger))
			if tc.prev > 0 {
				_ = cache.UpdateHistory(ctx, Batch{Images: images("old", tc.prev)})
			}
			if err := cache.UpdateHistory(ctx, Batch{Images: images("new", tc.added)}); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, err := cache.FetchHistory(ctx)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			want := min(tc.prev+tc.added, DefaultLimit)
			if len(got) != want {
				t.Fatalf("len = %d, want %d", len(got), want)
			}
		})
	}
}

func TestUpdateHistoryAllowsDuplicates(t *testing.T) {
	ctx := context.Background()
	cache := New(kv.NewMemoryStore(), WithLogger(quietLogger))
	_ = cache.UpdateHistory(ctx, Batch{Images: []string{"a"}, Prompt: "p"})
	_ = cache.UpdateHistory(ctx, Batch{Images: []string{"a"}, Prompt: "p"})

	got, _ := cache.FetchHistory(ctx)
	if len(got) != 2 {
		t.Fatalf("expected duplicate kept, got %d records", len(got))
	}
}

func TestCustomKeyLimitAndDefault(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	cache := New(store, WithKey("recent"), WithLimit(2), WithDefaultAPIType("photo"), WithLogger(quietLogger))

	_ = cache.UpdateHistory(ctx, Batch{Images: []string{"a", "b", "c"}})
	got, _ := cache.FetchHistory(ctx)
	want := []Record{{Image: "a", APIType: "photo"}, {Image: "b", APIType: "photo"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
	if _, err := store.Get(ctx, "recent"); err != nil {
		t.Fatalf("expected value under custom key: %v", err)
	}
}

func TestFetchHistoryAbsent(t *testing.T) {
	cache := New(kv.NewMemoryStore(), WithLogger(quietLogger))
	got, err := cache.FetchHistory(context.Background())
	if !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil records, got %#v", got)
	}
}

func TestClearHistoryThenFetch(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	cache := New(store, WithLogger(quietLogger))
	_ = cache.UpdateHistory(ctx, Batch{Images: []string{"a"}})
	_ = store.Set(ctx, "other", []byte("x"))

	if err := cache.ClearHistory(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := cache.FetchHistory(ctx); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory after clear, got %v", err)
	}
	// Clear wipes the whole namespace.
	if _, err := store.Get(ctx, "other"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected namespace cleared, got %v", err)
	}
}

func TestDeleteHistoryKeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	cache := New(store, WithLogger(quietLogger))
	_ = cache.UpdateHistory(ctx, Batch{Images: []string{"a"}})
	_ = store.Set(ctx, "other", []byte("x"))

	if err := cache.DeleteHistory(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.FetchHistory(ctx); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected ErrNoHistory, got %v", err)
	}
	if _, err := store.Get(ctx, "other"); err != nil {
		t.Fatalf("expected other key kept: %v", err)
	}
}

func TestUpdateHistoryReadFailureDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	inner := kv.NewMemoryStore()
	store := &failingStore{Store: inner, failGet: true}
	cache := New(store, WithLogger(quietLogger))

	err := cache.UpdateHistory(ctx, Batch{Images: []string{"a"}})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected read error, got %v", err)
	}
	if _, err := inner.Get(ctx, DefaultKey); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected nothing written, got %v", err)
	}
}

func TestUpdateHistoryWriteFailureKeepsPriorState(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: kv.NewMemoryStore()}
	cache := New(store, WithLogger(quietLogger))
	_ = cache.UpdateHistory(ctx, Batch{Images: []string{"a"}})

	store.failSet = true
	if err := cache.UpdateHistory(ctx, Batch{Images: []string{"b"}}); !errors.Is(err, errBoom) {
		t.Fatalf("expected write error, got %v", err)
	}
	store.failSet = false

	got, err := cache.FetchHistory(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].Image != "a" {
		t.Fatalf("prior state changed: %#v", got)
	}
}

func TestFetchHistoryCorruptValue(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	_ = store.Set(ctx, DefaultKey, []byte("not json"))
	cache := New(store, WithLogger(quietLogger))

	_, err := cache.FetchHistory(ctx)
	if err == nil || errors.Is(err, ErrNoHistory) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestClearHistoryFailure(t *testing.T) {
	cache := New(&failingStore{Store: kv.NewMemoryStore(), failClear: true}, WithLogger(quietLogger))
	if err := cache.ClearHistory(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected clear error, got %v", err)
	}
}
