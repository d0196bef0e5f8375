//go:build ignore

// Package main generates a synthetic policy folder for benchmarking ingest
// and index build.
// Usage: go run scripts/generate-policies.go -files 500 -output testdata/bench/raw_policies
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 500, "Number of policy files to generate")
	sections  = flag.Int("sections", 4, "Sections per policy")
	outputDir = flag.String("output", "testdata/bench/raw_policies", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"leave", "remote-work", "travel", "expenses", "parental", "holiday",
	"overtime", "benefits", "conduct", "security", "training", "relocation",
}

var subjects = []string{
	"Employees", "Managers", "Contractors", "New hires", "Part-time staff", "Team leads",
}

var rules = []string{
	"may carry over up to %d unused days into the next calendar year",
	"must submit a request at least %d business days in advance",
	"are reimbursed for up to %d nights of accommodation per trip",
	"receive %d weeks of paid time off after each qualifying event",
	"may work remotely up to %d days per week with written approval",
	"must complete %d hours of mandatory training each quarter",
}

var closers = []string{
	"Requests are approved by the direct manager.",
	"Exceptions require sign-off from People Operations.",
	"Unused allowance does not convert to cash.",
	"This section applies from the effective date above.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output dir: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numFiles; i++ {
		topic := topics[i%len(topics)]
		name := fmt.Sprintf("%s-%04d.md", topic, i)
		if err := os.WriteFile(filepath.Join(*outputDir, name), []byte(policy(rng, topic, i)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d policies in %s\n", *numFiles, *outputDir)
}

func policy(rng *rand.Rand, topic string, n int) string {
	var b strings.Builder
	title := strings.ToUpper(topic[:1]) + strings.ReplaceAll(topic[1:], "-", " ")
	fmt.Fprintf(&b, "# %s policy %d\n\n", title, n)
	fmt.Fprintf(&b, "Effective: 2025-%02d-01\n\n", 1+rng.Intn(12))

	for s := 0; s < *sections; s++ {
		fmt.Fprintf(&b, "## Section %d\n\n", s+1)
		for p := 0; p < 3; p++ {
			rule := fmt.Sprintf(rules[rng.Intn(len(rules))], 1+rng.Intn(20))
			fmt.Fprintf(&b, "%s %s. %s\n", subjects[rng.Intn(len(subjects))], rule, closers[rng.Intn(len(closers))])
		}
		b.WriteString("\n")
	}
	return b.String()
}
