// Package testutil provides shared test infrastructure: the golden
// instruction dataset, repository paths and numeric assertion helpers used
// across sim/ and its sub-package tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/golden_instructions.json.
type GoldenDataset struct {
	Instructions []GoldenInstruction `json:"instructions"`
}

// GoldenInstruction is one wire string and its expected reading.
type GoldenInstruction struct {
	Name           string   `json:"name"`
	Digits         string   `json:"digits"`
	Mode           int      `json:"mode"`
	ResourceConfig int      `json:"resource_config"`
	Threshold      int      `json:"threshold"`
	Picks          [][2]int `json:"picks"` // slot, subchannel
}

// RepoPath resolves parts against the repository root. The root is found
// relative to this source file: sim/internal/testutil/ -> ../../../.
func RepoPath(t *testing.T, parts ...string) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	root := filepath.Join(filepath.Dir(thisFile), "..", "..", "..")
	return filepath.Join(append([]string{root}, parts...)...)
}

// LoadGoldenDataset loads the golden instruction dataset from testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	data, err := os.ReadFile(RepoPath(t, "testdata", "golden_instructions.json"))
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	return &dataset
}

// UniformMatrix returns a rows x cols matrix filled with v.
func UniformMatrix(rows, cols int, v float64) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = v
		}
	}
	return m
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
