package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_KeepsNewestInOrder(t *testing.T) {
	buf := NewCircularBuffer[string](3)
	assert.Empty(t, buf.Items())

	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		buf.Add(q)
	}

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"q3", "q4", "q5"}, buf.Items())
}

func TestCircularBuffer_PartiallyFilled(t *testing.T) {
	buf := NewCircularBuffer[int](0)
	buf.Add(1)
	buf.Add(2)

	assert.Equal(t, []int{1, 2}, buf.Items())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency time.Duration
		want    LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LatencyToBucket(tt.latency), tt.latency.String())
	}
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"can", "carry", "over", "unused", "pto"},
		ExtractTerms("Can I carry over unused PTO? pto"))
	assert.Nil(t, ExtractTerms("  "))
	assert.Nil(t, ExtractTerms("a to of"))
}

func TestQueryEvent_IsZeroResult(t *testing.T) {
	assert.True(t, QueryEvent{}.IsZeroResult())
	assert.True(t, QueryEvent{ResultCount: 6, TopScore: 0}.IsZeroResult())
	assert.False(t, QueryEvent{ResultCount: 6, TopScore: 0.8}.IsZeroResult())
	assert.False(t, QueryEvent{Failed: true}.IsZeroResult())
}

func TestQueryMetrics_RecordAndSnapshot(t *testing.T) {
	// Given: a mix of tool calls
	m := NewQueryMetrics(Config{})
	m.Record(QueryEvent{Tool: "hybrid_search", Query: "parental leave weeks", Mode: ModeHybrid,
		ResultCount: 6, TopScore: 0.9, Latency: 5 * time.Millisecond})
	m.Record(QueryEvent{Tool: "ask_policy", Query: "Parental leave weeks ", Mode: ModeLexical,
		ResultCount: 6, TopScore: 0.7, Latency: 120 * time.Millisecond})
	m.Record(QueryEvent{Tool: "hybrid_search", Query: "gym membership", Mode: ModeHybrid,
		ResultCount: 6, TopScore: 0, Latency: 20 * time.Millisecond})
	m.Record(QueryEvent{Tool: "hybrid_search", Query: "broken", Failed: true})

	// When
	s := m.Snapshot()

	// Then
	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, int64(1), s.FailedQueries)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, []string{"gym membership"}, s.ZeroResultQueries)
	assert.Equal(t, map[string]int64{"hybrid_search": 3, "ask_policy": 1}, s.ToolCounts)
	assert.Equal(t, map[Mode]int64{ModeHybrid: 2, ModeLexical: 1}, s.ModeCounts)
	assert.Equal(t, int64(2), s.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), s.LatencyDistribution[BucketP500])
	assert.Equal(t, int64(1), s.ExactRepeatCount)
	assert.InDelta(t, 0.25, s.ExactRepeatRate, 1e-9)
	assert.InDelta(t, 25.0, s.ZeroResultPercentage(), 1e-9)

	require.NotEmpty(t, s.TopTerms)
	assert.Equal(t, TermCount{Term: "leave", Count: 2}, s.TopTerms[0])
	assert.Equal(t, TermCount{Term: "parental", Count: 2}, s.TopTerms[1])
}

func TestQueryMetrics_TopTermsReportedLimit(t *testing.T) {
	m := NewQueryMetrics(Config{TopTermsReported: 2})
	m.Record(QueryEvent{Query: "alpha beta gamma delta", ResultCount: 1, TopScore: 1})

	assert.Len(t, m.Snapshot().TopTerms, 2)
}

func TestQueryMetrics_SnapshotIsACopy(t *testing.T) {
	m := NewQueryMetrics(Config{})
	m.Record(QueryEvent{Tool: "ask_policy", Query: "sick days", ResultCount: 1, TopScore: 1})

	s := m.Snapshot()
	s.ToolCounts["ask_policy"] = 99

	assert.Equal(t, int64(1), m.Snapshot().ToolCounts["ask_policy"])
}

func TestQueryMetrics_EmptySnapshot(t *testing.T) {
	s := NewQueryMetrics(Config{}).Snapshot()

	assert.Zero(t, s.TotalQueries)
	assert.Zero(t, s.ZeroResultPercentage())
	assert.Empty(t, s.TopTerms)
	assert.Empty(t, s.ZeroResultQueries)
	assert.False(t, s.Since.IsZero())
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	m := NewQueryMetrics(Config{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(QueryEvent{Tool: "hybrid_search", Query: fmt.Sprintf("query %d %d", i, j),
					Mode: ModeHybrid, ResultCount: 1, TopScore: 1})
				_ = m.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(1000), s.TotalQueries)
	assert.Equal(t, int64(1000), s.ModeCounts[ModeHybrid])
}
