package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatioSampler(t *testing.T) {
	var s ratioSampler
	assert.True(t, s.Allow())

	s.Set(1, 4)
	allowed := 0
	for i := 0; i < 40; i++ {
		if s.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)

	s.Set(5, 2)
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())

	s.Set(0, 10)
	assert.True(t, s.Allow())
}

func TestParseRatio(t *testing.T) {
	cases := map[string][2]int{
		"1/50":  {1, 50},
		" 3/7 ": {3, 7},
		"20":    {1, 20},
		"0":     {0, 0},
		"a/b":   {0, 0},
		"":      {0, 0},
	}
	for in, want := range cases {
		n, d := parseRatio(in)
		assert.Equal(t, want, [2]int{n, d}, in)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	assert.Equal(t, Meta{}, MetaFrom(nil))

	ctx := WithRID(context.Background(), "r")
	ctx = WithUpdateMeta(ctx, 1, 2, 3)
	ctx = WithHandler(ctx, "start")
	ctx = WithHandler(ctx, "")
	assert.Equal(t, Meta{RID: "r", UpdateID: 1, UserID: 2, ChatID: 3, Handler: "start"}, MetaFrom(ctx))
	assert.Equal(t, "r", RIDFrom(ctx))
}

func TestUtilHelpers(t *testing.T) {
	assert.Equal(t, "a.b.c", CompactRID("10:11:12"))
	assert.Equal(t, "x:y", CompactRID("x:y"))
	assert.Equal(t, "ab", SanitizeLimit("a\x00bc", 2))
	s, cut := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", s)
	assert.True(t, cut)
}
