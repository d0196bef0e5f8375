// Package telemetry keeps in-process query statistics for the MCP server.
// Nothing is persisted or reported outside the process; the snapshot is
// served by the index_status tool and logged when the server stops.
package telemetry

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/smarthr/internal/store"
)

// Mode is the retrieval mode a query actually ran in.
type Mode string

const (
	// ModeHybrid means both signals contributed.
	ModeHybrid Mode = "hybrid"
	// ModeLexical means the dense signal was unavailable or skipped.
	ModeLexical Mode = "lexical"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered (or failed) tool call.
type QueryEvent struct {
	Tool        string
	Query       string
	Mode        Mode
	ResultCount int
	TopScore    float64
	Latency     time.Duration
	Failed      bool
}

// IsZeroResult reports a query that matched nothing: no hits, or only the
// zero-score padding the engine returns when neither signal fires.
func (e QueryEvent) IsZeroResult() bool {
	return !e.Failed && (e.ResultCount == 0 || e.TopScore <= 0)
}

// minTermLen drops stop-word sized tokens from the top terms.
const minTermLen = 3

// ExtractTerms returns the distinct lowercase terms of query, trimmed of
// punctuation, in first-seen order.
func ExtractTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, tok := range store.Tokenize(query) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(tok) < minTermLen || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	FailedQueries       int64                   `json:"failed_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ToolCounts          map[string]int64        `json:"tool_counts"`
	ModeCounts          map[Mode]int64          `json:"mode_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Config sizes the collector.
type Config struct {
	TopTermsCapacity      int // terms tracked (LRU)
	TopTermsReported      int // terms in a snapshot
	ZeroResultsCapacity   int // recent zero-result queries kept
	RecentQueriesCapacity int // query hashes kept for repeat detection
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		TopTermsReported:      10,
		ZeroResultsCapacity:   20,
		RecentQueriesCapacity: 500,
	}
}

// QueryMetrics aggregates query events. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	config          Config
	tools           map[string]int64
	modes           map[Mode]int64
	latencies       map[LatencyBucket]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	recentQueries   *lru.Cache[string, struct{}]
	total           int64
	failed          int64
	zeroResultCount int64
	repeats         int64
	since           time.Time
}

// NewQueryMetrics creates a collector; zero config fields take defaults.
func NewQueryMetrics(cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.TopTermsReported <= 0 {
		cfg.TopTermsReported = def.TopTermsReported
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	// lru.New only fails for non-positive sizes.
	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	return &QueryMetrics{
		config:        cfg,
		tools:         make(map[string]int64),
		modes:         make(map[Mode]int64),
		latencies:     make(map[LatencyBucket]int64),
		topTerms:      topTerms,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		recentQueries: recent,
		since:         time.Now(),
	}
}

// Record adds one event.
func (m *QueryMetrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.tools[event.Tool]++
	m.latencies[LatencyToBucket(event.Latency)]++

	if event.Failed {
		m.failed++
	} else {
		m.modes[event.Mode]++
	}
	if event.IsZeroResult() {
		m.zeroResultCount++
		m.zeroResults.Add(event.Query)
	}

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	key := hashQuery(event.Query)
	if _, ok := m.recentQueries.Get(key); ok {
		m.repeats++
	}
	m.recentQueries.Add(key, struct{}{})
}

// hashQuery normalizes case and surrounding space before hashing.
func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot copies the current metrics. Top terms are ordered by count,
// then alphabetically.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}
	slices.SortFunc(terms, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Term, b.Term)
	})
	if len(terms) > m.config.TopTermsReported {
		terms = terms[:m.config.TopTermsReported]
	}

	var repeatRate float64
	if m.total > 0 {
		repeatRate = float64(m.repeats) / float64(m.total)
	}

	return &Snapshot{
		TotalQueries:        m.total,
		FailedQueries:       m.failed,
		ZeroResultCount:     m.zeroResultCount,
		ToolCounts:          maps.Clone(m.tools),
		ModeCounts:          maps.Clone(m.modes),
		LatencyDistribution: maps.Clone(m.latencies),
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.Items(),
		ExactRepeatCount:    m.repeats,
		ExactRepeatRate:     repeatRate,
		Since:               m.since,
	}
}
