package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/millhouse-foods/erpsync/internal/core/domain"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driving"
)

// mockDispatchRunner implements driving.DispatchRunner for testing.
type mockDispatchRunner struct {
	report *driving.BatchReport
	err    error

	gotSince time.Time
}

func (m *mockDispatchRunner) Dispatch(_ context.Context, since time.Time) (*driving.BatchReport, error) {
	m.gotSince = since
	return m.report, m.err
}

func setupDispatchTest(runner driving.DispatchRunner) func() {
	oldRunner := dispatchRunner
	dispatchRunner = runner
	return func() {
		dispatchRunner = oldRunner
	}
}

func TestDispatchCmd_Use(t *testing.T) {
	assert.Equal(t, "dispatch", dispatchCmd.Use)
}

func TestDispatchCmd_Short(t *testing.T) {
	assert.Equal(t, "Fetch depletions and post them to the ERP", dispatchCmd.Short)
}

func TestDispatchCmd_ReportsResults(t *testing.T) {
	runner := &mockDispatchRunner{
		report: &driving.BatchReport{
			RunID: "run-123",
			Results: []domain.DispatchResult{
				{UniqueTransactionID: "Flour_LOT1_V1_5", Success: true},
				{UniqueTransactionID: "Flour_LOT1_V1_5", Skipped: true, Message: "already dispatched"},
				{UniqueTransactionID: "Yeast_LOT2_V2_1", Message: "item not in item master"},
			},
			Dispatched: 1,
			Skipped:    1,
			Failed:     1,
		},
	}
	cleanup := setupDispatchTest(runner)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"dispatch"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "done    Flour_LOT1_V1_5")
	assert.Contains(t, out, "skipped Flour_LOT1_V1_5 (already dispatched)")
	assert.Contains(t, out, "error   Yeast_LOT2_V2_1 (item not in item master)")
	assert.Contains(t, out, "Run run-123: 1 dispatched, 1 skipped, 1 failed.")
}

func TestDispatchCmd_SinceFlag(t *testing.T) {
	runner := &mockDispatchRunner{report: &driving.BatchReport{RunID: "run-1"}}
	cleanup := setupDispatchTest(runner)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"dispatch", "--since", "2h"})
	defer func() {
		rootCmd.SetArgs(nil)
		sinceFlag = defaultWindow
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	elapsed := time.Since(runner.gotSince)
	assert.InDelta(t, (2 * time.Hour).Seconds(), elapsed.Seconds(), 5)
}

func TestDispatchCmd_RunnerError(t *testing.T) {
	runner := &mockDispatchRunner{
		report: &driving.BatchReport{
			RunID:      "run-9",
			Results:    []domain.DispatchResult{{UniqueTransactionID: "Flour_LOT1_V1_5", Success: true}},
			Dispatched: 1,
		},
		err: errors.New("recording outcome: disk full"),
	}
	cleanup := setupDispatchTest(runner)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"dispatch"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch failed")
	// Partial results are still printed before the error surfaces.
	assert.Contains(t, buf.String(), "done    Flour_LOT1_V1_5")
}
