package main

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"testing"
	"time"
)

// pagedFetch serves fixed pages through the fetchPage contract, using the
// page index as the cursor.
func pagedFetch[T any](pages [][]T) fetchPage[T] {
	return func(ctx context.Context, cursor string) ([]T, string, error) {
		idx := 0
		if cursor != "" {
			idx, _ = strconv.Atoi(cursor)
		}
		next := ""
		if idx+1 < len(pages) {
			next = strconv.Itoa(idx + 1)
		}
		return pages[idx], next, nil
	}
}

func fastLimiter() *rateLimiter {
	rl := newRateLimiter(1)
	newTestClock().install(rl)
	return rl
}

func TestPaginateCompleteness(t *testing.T) {
	for _, pageSize := range []int{1, 2, 5, 10} {
		var pages [][]int
		for i := 0; i < 10; i += pageSize {
			var page []int
			for j := i; j < i+pageSize && j < 10; j++ {
				page = append(page, j)
			}
			pages = append(pages, page)
		}

		got, err := collectPages(context.Background(), fastLimiter(), 3, pagedFetch(pages))
		if err != nil {
			t.Fatalf("page size %d: %v", pageSize, err)
		}
		want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("page size %d: got %v", pageSize, got)
		}
	}
}

func TestPaginateEmptyListing(t *testing.T) {
	got, err := collectPages(context.Background(), fastLimiter(), 3, pagedFetch([][]int{nil}))
	if err != nil || len(got) != 0 {
		t.Errorf("empty listing: got %v, %v", got, err)
	}
}

func TestPaginateLazy(t *testing.T) {
	fetches := 0
	fetch := func(ctx context.Context, cursor string) ([]int, string, error) {
		fetches++
		return []int{fetches}, "more", nil
	}

	for item, err := range paginate(context.Background(), fastLimiter(), 3, fetch) {
		if err != nil {
			t.Fatal(err)
		}
		if item == 3 {
			break
		}
	}
	if fetches != 3 {
		t.Errorf("fetched %d pages after early break, want 3", fetches)
	}
}

func TestPaginateTransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	attempts := 0
	fetch := func(ctx context.Context, cursor string) ([]int, string, error) {
		attempts++
		return nil, "", boom
	}

	_, err := collectPages(context.Background(), fastLimiter(), 3, fetch)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want bounded retries of 3", attempts)
	}
}

func TestPaginateRetriesTransientError(t *testing.T) {
	attempts := 0
	fetch := func(ctx context.Context, cursor string) ([]int, string, error) {
		attempts++
		if attempts == 1 {
			return nil, "", fmt.Errorf("transient")
		}
		return []int{42}, "", nil
	}

	got, err := collectPages(context.Background(), fastLimiter(), 3, fetch)
	if err != nil || !reflect.DeepEqual(got, []int{42}) {
		t.Errorf("got %v, %v", got, err)
	}
}

// A rate-limit rejection with retry-after on page 3 of a 5-page listing:
// the reissued fetch waits out the signal and all pages are still
// retrieved.
func TestPaginateHonorsRetryAfter(t *testing.T) {
	clock := newTestClock()
	rl := newRateLimiter(3)
	clock.install(rl)

	pages := [][]int{{1}, {2}, {3}, {4}, {5}}
	var fetchTimes []time.Time
	var signalTime time.Time
	signalled := false

	inner := pagedFetch(pages)
	fetch := func(ctx context.Context, cursor string) ([]int, string, error) {
		if cursor == "2" && !signalled {
			signalled = true
			signalTime = clock.now
			return nil, "", &rateLimitSignal{retryAfter: 2 * time.Second}
		}
		fetchTimes = append(fetchTimes, clock.now)
		return inner(ctx, cursor)
	}

	got, err := collectPages(context.Background(), rl, 3, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5}) {
		t.Errorf("got %v, want all five pages", got)
	}

	// fetchTimes[2] is the successful reissue of page 3
	if wait := fetchTimes[2].Sub(signalTime); wait < 2*time.Second {
		t.Errorf("page 3 reissued %s after the signal, want >= 2s", wait)
	}
}

func TestPaginateCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(ctx context.Context, cursor string) ([]int, string, error) {
		cancel() // cancel mid-listing; the next page boundary must observe it
		return []int{1}, "more", nil
	}

	_, err := collectPages(ctx, fastLimiter(), 3, fetch)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
