// Package support holds the godog step plumbing for the CLI integration
// suite: a shared TestContext carrying fixture/command state across steps,
// grounded on the same in-process cobra execution idiom the teacher's own
// CLI integration suite used.
package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	invoicecardcmd "github.com/cardmill/invoicecard/cmd/invoicecard/cmd"
)

// TestContext holds the state shared across steps within one scenario.
type TestContext struct {
	WorkingDir string
	TempDir    string

	LastCommand  string
	LastOutput   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	LastCard map[string]interface{}

	// FixturePath and SecondaryFixturePath hold the document(s) a Given step
	// prepared for the current scenario.
	FixturePath          string
	SecondaryFixturePath string
}

// NewTestContext creates a fresh scenario context with its own scratch
// directory.
func NewTestContext() (*TestContext, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "invoicecard-cli-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{WorkingDir: workingDir, TempDir: tempDir}, nil
}

// Cleanup removes the scenario's scratch directory.
func (tc *TestContext) Cleanup() error {
	return os.RemoveAll(tc.TempDir)
}

// fixturePath returns an absolute path for a fixture file named name inside
// this scenario's scratch directory.
func (tc *TestContext) fixturePath(name string) string {
	return filepath.Join(tc.TempDir, name)
}

// runInvoicecard runs the invoicecard CLI in-process with args, capturing
// stdout/stderr the same way the teacher's iRunCommandInternal did.
func (tc *TestContext) runInvoicecard(args []string) error {
	root := invoicecardcmd.GetRootCommand()

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	start := time.Now()
	err := root.Execute()
	tc.LastDuration = time.Since(start)

	tc.LastCommand = "invoicecard " + strings.Join(args, " ")
	tc.LastOutput = stdout.String() + stderr.String()
	tc.LastError = err
	if err != nil {
		tc.LastExitCode = 1
	} else {
		tc.LastExitCode = 0
	}

	return nil
}

// runInvoicecardBinary runs the built invoicecard binary out of process,
// used by scenarios that need a clean process (no viper state leaking
// between scenarios run in the same test binary).
func (tc *TestContext) runInvoicecardBinary(args []string) error {
	binPath := os.Getenv("INVOICECARD_BIN")
	if binPath == "" {
		return errors.New("INVOICECARD_BIN not set")
	}

	start := time.Now()
	cmd := exec.Command(binPath, args...) //nolint:gosec // G204: test-controlled args
	cmd.Dir = tc.WorkingDir
	out, err := cmd.CombinedOutput()
	tc.LastDuration = time.Since(start)

	tc.LastCommand = "invoicecard " + strings.Join(args, " ")
	tc.LastOutput = string(out)
	tc.LastError = err
	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.LastExitCode = exitErr.ExitCode()
	} else if err != nil {
		tc.LastExitCode = -1
	} else {
		tc.LastExitCode = 0
	}

	return nil
}

// parseLastCardFromOutput extracts the `card` object out of `invoicecard
// process`'s one-JSON-object-per-file output (see cmd/invoicecard's
// documentFromPath/runProcess) and stores it for later field assertions.
func (tc *TestContext) parseLastCardFromOutput() error {
	var doc struct {
		File string                 `json:"file"`
		Card map[string]interface{} `json:"card"`
	}
	trimmed := strings.TrimSpace(tc.LastOutput)
	if trimmed == "" {
		return fmt.Errorf("no output to parse as JSON\ncommand: %s", tc.LastCommand)
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return fmt.Errorf("failed to parse process output as JSON: %w\noutput: %s", err, tc.LastOutput)
	}
	tc.LastCard = doc.Card
	return nil
}
