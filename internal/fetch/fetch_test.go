package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lifedata/connector/internal/clock"
	apperrors "github.com/lifedata/connector/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindows_NinetyFiveDaysInThirtyDayChunks(t *testing.T) {
	d0 := day(2024, 1, 1)
	windows := Windows(d0, d0.AddDate(0, 0, 95), 30)
	require.Len(t, windows, 4)

	type span struct{ first, last int }
	want := []span{{0, 29}, {30, 59}, {60, 89}, {90, 94}}
	for i, w := range windows {
		first := int(w.Start.Sub(d0).Hours() / 24)
		last := int(w.Last().Sub(d0).Hours() / 24)
		assert.Equal(t, want[i], span{first, last}, "window %d", i)
	}
}

func TestWindows_CoverRangeExactly(t *testing.T) {
	start := time.Date(2023, 3, 10, 15, 30, 0, 0, time.UTC)
	end := start.AddDate(1, 2, 3).Add(7 * time.Hour)

	for _, chunk := range []int{1, 30, 90, 100, 365} {
		windows := Windows(start, end, chunk)
		require.NotEmpty(t, windows)
		assert.Equal(t, start, windows[0].Start)
		assert.Equal(t, end, windows[len(windows)-1].End)
		for i := 1; i < len(windows); i++ {
			assert.Equal(t, windows[i-1].End, windows[i].Start, "chunk %d gap at %d", chunk, i)
		}
		for _, w := range windows {
			assert.LessOrEqual(t, w.Days(), float64(chunk)+0.05)
		}
	}
}

func TestWindows_Empty(t *testing.T) {
	d := day(2024, 1, 1)
	assert.Nil(t, Windows(d, d, 30))
	assert.Nil(t, Windows(d, d.AddDate(0, 0, -1), 30))
	assert.Nil(t, Windows(d, d.AddDate(0, 0, 3), 0))
}

func TestFetchRange_ConcatenatesInOrder(t *testing.T) {
	d0 := day(2024, 1, 1)
	var calls []Window

	got, err := FetchRange(context.Background(), d0, d0.AddDate(0, 0, 95), 30, func(ctx context.Context, w Window) ([]string, error) {
		calls = append(calls, w)
		return []string{w.Start.Format("01-02"), w.Last().Format("01-02")}, nil
	})
	require.NoError(t, err)
	assert.Len(t, calls, 4)
	assert.Equal(t, []string{"01-01", "01-30", "01-31", "02-29", "03-01", "03-30", "03-31", "04-04"}, got)
}

func TestFetchRange_StopsOnError(t *testing.T) {
	d0 := day(2024, 1, 1)
	calls := 0
	_, err := FetchRange(context.Background(), d0, d0.AddDate(0, 0, 90), 30, func(ctx context.Context, w Window) ([]int, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("boom")
		}
		return []int{calls}, nil
	})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 2, calls)
}

func TestFetchRange_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FetchRange(ctx, day(2024, 1, 1), day(2024, 2, 1), 7, func(ctx context.Context, w Window) ([]int, error) {
		t.Fatal("fetch must not run")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchDaily_InclusiveAndSkipsEmpty(t *testing.T) {
	var seen []string
	got, err := FetchDaily(context.Background(), day(2024, 2, 27), time.Date(2024, 3, 2, 18, 0, 0, 0, time.UTC),
		func(ctx context.Context, d time.Time) (string, bool, error) {
			seen = append(seen, d.Format("2006-01-02"))
			if d.Day() == 29 {
				return "", false, nil
			}
			return d.Format("01-02"), true, nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01", "2024-03-02"}, seen)
	assert.Equal(t, []string{"02-27", "02-28", "03-01", "03-02"}, got)
}

func TestDays_UsesStartLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	start := time.Date(2024, 1, 1, 23, 0, 0, 0, jst)
	end := time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC) // 2024-01-03 01:00 JST

	days := Days(start, end)
	require.Len(t, days, 3)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, jst), days[2])
}

func TestFetchPaginated_Termination(t *testing.T) {
	tests := []struct {
		total     int
		pageSize  int
		wantPages int
	}{
		{0, 100, 1},
		{50, 100, 1},
		{100, 100, 2},
		{250, 100, 3},
		{2400, 1000, 3},
		{3000, 1000, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.pageSize), func(t *testing.T) {
			fake := clock.NewFake(time.Unix(0, 0))
			pages := 0
			got, err := FetchPaginated(context.Background(), tt.pageSize, 300*time.Millisecond, fake,
				func(ctx context.Context, offset, size int) ([]int, error) {
					pages++
					var page []int
					for i := offset; i < offset+size && i < tt.total; i++ {
						page = append(page, i)
					}
					return page, nil
				})
			require.NoError(t, err)
			assert.Len(t, got, tt.total)
			assert.Equal(t, tt.wantPages, pages)
			assert.Len(t, fake.Sleeps(), tt.wantPages-1)
			for i, v := range got {
				if v != i {
					t.Fatalf("item %d out of order: %d", i, v)
				}
			}
		})
	}
}

func TestFetchPaginated_Error(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	_, err := FetchPaginated(context.Background(), 10, time.Second, fake, func(ctx context.Context, offset, size int) ([]int, error) {
		if offset == 10 {
			return nil, errors.New("page failed")
		}
		return make([]int, size), nil
	})
	assert.EqualError(t, err, "page failed")
}

func TestNotFoundAsEmpty(t *testing.T) {
	items, err := NotFoundAsEmpty([]int{1}, apperrors.NewHTTPError(404, []byte("no device"), "/spo2"))
	assert.NoError(t, err)
	assert.Nil(t, items)

	_, err = NotFoundAsEmpty([]int(nil), apperrors.NewHTTPError(403, nil, "/spo2"))
	assert.True(t, apperrors.IsStatus(err, 403))

	items, err = NotFoundAsEmpty([]int{1, 2}, nil)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, items)
}
