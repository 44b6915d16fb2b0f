//go:build ignore

// Check_history audits the JSON state files written by subwatch: every
// history must be distinct-in-sequence and every result must be a 200 backed
// by a 200 somewhere in that host's history.
//
// Usage:
//
//	go run check_history.go -history log.json -result result.json
//
// Exit codes:
//
//	0 - Verification passed
//	2 - File errors or malformed JSON
//	3 - Invariant violations found
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
)

func main() {
	historyPath := flag.String("history", "log.json", "Path to the history file")
	resultPath := flag.String("result", "result.json", "Path to the result file")
	flag.Parse()

	var history map[string][]*int
	if err := readJSON(*historyPath, &history); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read history: %v\n", err)
		os.Exit(2)
	}

	var results map[string]int
	if err := readJSON(*resultPath, &results); err != nil {
		fmt.Fprintf(os.Stderr, "failed to read results: %v\n", err)
		os.Exit(2)
	}

	violations := 0
	unknowns := 0
	lengths := map[int]int{}

	for host, statuses := range history {
		lengths[len(statuses)]++
		for i, s := range statuses {
			if s == nil {
				unknowns++
			}
			if i > 0 && same(statuses[i-1], s) {
				fmt.Printf("REPEAT host=%s at index %d (%s)\n", host, i, label(s))
				violations++
			}
		}
	}

	for host, code := range results {
		if code != 200 {
			fmt.Printf("RESULT host=%s has status %d\n", host, code)
			violations++
		}
		if !seen200(history[host]) {
			fmt.Printf("RESULT host=%s has no 200 in history\n", host)
			violations++
		}
	}

	fmt.Printf("Hosts tracked: %d  Reachable: %d  Unknown entries: %d\n", len(history), len(results), unknowns)

	fmt.Println("History lengths:")
	keys := make([]int, 0, len(lengths))
	for k := range lengths {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fmt.Printf("  %d -> %d hosts\n", k, lengths[k])
	}

	if violations > 0 {
		fmt.Printf("ERROR: found %d violations\n", violations)
		os.Exit(3)
	}

	fmt.Println("Verification passed: histories are distinct-in-sequence and results are backed by history.")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func same(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func seen200(statuses []*int) bool {
	for _, s := range statuses {
		if s != nil && *s == 200 {
			return true
		}
	}
	return false
}

func label(s *int) string {
	if s == nil {
		return "unknown"
	}
	return fmt.Sprint(*s)
}
