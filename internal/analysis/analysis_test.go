package analysis_test

import (
	"testing"

	"github.com/htmue/purescript-backend-optimizer/internal/analysis"
	"github.com/htmue/purescript-backend-optimizer/internal/testrunner/assert"
)

func TestCombine_SumsSizeMaxesComplexityOrsRewrite(t *testing.T) {
	a := analysis.Leaf(2, analysis.Trivial)
	b := analysis.WithRewrite(analysis.Leaf(3, analysis.NonTrivial))

	out := analysis.Combine(a, b)

	assert.Equal(t, 5, out.Size)
	assert.Equal(t, analysis.NonTrivial, out.Complexity)
	assert.True(t, out.Rewrite)
}

func TestCombine_MergesUsageCountsAcrossLevels(t *testing.T) {
	a := analysis.Combine(analysis.Use(0, false), analysis.Use(1, false))
	b := analysis.Use(0, true)

	out := analysis.Combine(a, b)

	u0 := analysis.UsageOf(out, 0)
	assert.Equal(t, 2, u0.Count)
	assert.True(t, u0.Captured)

	u1 := analysis.UsageOf(out, 1)
	assert.Equal(t, 1, u1.Count)
	assert.False(t, u1.Captured)
}

func TestCombineAll_StartsFromZero(t *testing.T) {
	out := analysis.CombineAll()
	assert.Equal(t, 0, out.Size)
	assert.Equal(t, analysis.Trivial, out.Complexity)
	assert.False(t, out.Rewrite)
	assert.Len(t, out.Usages, 0)
}

func TestScale_MultipliesSizeAndUsageCountsNotCaptured(t *testing.T) {
	base := analysis.Combine(analysis.Leaf(4, analysis.Deref), analysis.Use(0, true))

	out := analysis.Scale(3, base)

	assert.Equal(t, 12, out.Size)
	u := analysis.UsageOf(out, 0)
	assert.Equal(t, 3, u.Count)
	assert.True(t, u.Captured)
}

func TestBound_RemovesOnlyTheGivenLevel(t *testing.T) {
	a := analysis.Combine(analysis.Use(0, false), analysis.Use(1, false))

	out := analysis.Bound(0, a)

	assert.Equal(t, 0, analysis.UsageOf(out, 0).Count)
	assert.Equal(t, 1, analysis.UsageOf(out, 1).Count)
}

func TestBound_NoOpWhenLevelAbsent(t *testing.T) {
	a := analysis.Use(1, false)
	out := analysis.Bound(0, a)
	assert.Equal(t, 1, analysis.UsageOf(out, 1).Count)
}

func TestBoundMany_RemovesEveryListedLevel(t *testing.T) {
	a := analysis.CombineAll(analysis.Use(0, false), analysis.Use(1, false), analysis.Use(2, false))

	out := analysis.BoundMany([]analysis.Level{0, 2}, a)

	assert.Equal(t, 0, analysis.UsageOf(out, 0).Count)
	assert.Equal(t, 1, analysis.UsageOf(out, 1).Count)
	assert.Equal(t, 0, analysis.UsageOf(out, 2).Count)
}

func TestMarkAllCaptured_SetsCapturedOnEveryUsage(t *testing.T) {
	a := analysis.Combine(analysis.Use(0, false), analysis.Use(1, false))

	out := analysis.MarkAllCaptured(a)

	assert.True(t, analysis.UsageOf(out, 0).Captured)
	assert.True(t, analysis.UsageOf(out, 1).Captured)
}

func TestWithRewrite_ForcesFlagRegardlessOfInput(t *testing.T) {
	assert.True(t, analysis.WithRewrite(analysis.Zero()).Rewrite)
	assert.True(t, analysis.WithRewrite(analysis.WithRewrite(analysis.Zero())).Rewrite)
}

func TestUsageOf_AbsentLevelReturnsZeroValue(t *testing.T) {
	u := analysis.UsageOf(analysis.Zero(), 5)
	assert.Equal(t, 0, u.Count)
	assert.False(t, u.Captured)
}
