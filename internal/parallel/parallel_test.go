package parallel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRanges(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
		n    int
		want [][2]int
	}{
		{"empty", Plan{Workers: 4, MinChunk: 1}, 0, nil},
		{"single worker", Plan{Workers: 1, MinChunk: 1}, 10, [][2]int{{0, 10}}},
		{"even split", Plan{Workers: 2, MinChunk: 1}, 10, [][2]int{{0, 5}, {5, 10}}},
		{"uneven split", Plan{Workers: 3, MinChunk: 1}, 10, [][2]int{{0, 4}, {4, 8}, {8, 10}}},
		{"min chunk caps workers", Plan{Workers: 8, MinChunk: 64}, 100, [][2]int{{0, 100}}},
		{"zero min chunk", Plan{Workers: 2, MinChunk: 0}, 3, [][2]int{{0, 2}, {2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.plan.ranges(tt.n))
		})
	}
}

func TestNewPlan(t *testing.T) {
	assert.Equal(t, Plan{Workers: 3, MinChunk: DefaultMinChunk}, NewPlan(3))
	assert.Positive(t, NewPlan(0).Workers)
	assert.Equal(t, 1, Serial().Workers)
}

func TestForVisitsEveryIndexOnce(t *testing.T) {
	const n = 1000
	hits := make([]int32, n)
	err := For(Plan{Workers: 7, MinChunk: 1}, n, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
		return nil
	})
	require.NoError(t, err)
	for i, h := range hits {
		require.EqualValues(t, 1, h, "index %d", i)
	}
}

func TestForLowestRangeErrorWins(t *testing.T) {
	var ran atomic.Int32
	err := For(Plan{Workers: 4, MinChunk: 1}, 40, func(lo, hi int) error {
		ran.Add(1)
		if lo >= 10 {
			return fmt.Errorf("range %d", lo)
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, "range 10", err.Error())
	assert.EqualValues(t, 4, ran.Load(), "every range should run")
}

func TestForSerialError(t *testing.T) {
	sentinel := errors.New("boom")
	err := For(Serial(), 5, func(lo, hi int) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, For(Serial(), 0, func(lo, hi int) error { return sentinel }))
}

func TestFoldOrdered(t *testing.T) {
	collect := func(p Plan) []int {
		return Fold(p, 50,
			func() []int { return nil },
			func(acc []int, lo, hi int) []int {
				for i := lo; i < hi; i++ {
					acc = append(acc, i)
				}
				return acc
			},
			func(dst, src []int) []int { return append(dst, src...) },
		)
	}

	want := collect(Serial())
	require.Len(t, want, 50)
	for workers := 2; workers <= 8; workers++ {
		assert.Equal(t, want, collect(Plan{Workers: workers, MinChunk: 1}), "workers=%d", workers)
	}
}

func TestFoldDeterministicSum(t *testing.T) {
	vals := make([]float64, 4096)
	for i := range vals {
		vals[i] = 1 / float64(i+1)
	}
	sum := func() float64 {
		return Fold(Plan{Workers: 6, MinChunk: 1}, len(vals),
			func() float64 { return 0 },
			func(acc float64, lo, hi int) float64 {
				for _, v := range vals[lo:hi] {
					acc += v
				}
				return acc
			},
			func(dst, src float64) float64 { return dst + src },
		)
	}

	first := sum()
	for range 10 {
		require.Equal(t, first, sum())
	}
}

func TestFoldEmpty(t *testing.T) {
	got := Fold(NewPlan(4), 0,
		func() int { return 7 },
		func(acc, lo, hi int) int { return acc + hi - lo },
		func(dst, src int) int { return dst + src },
	)
	assert.Equal(t, 7, got)
}
