// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation.
//
// Command: doctor
// Short:   Run health checks
// Aliases: diag
//
// Health Checks Performed:
//   1. Config Valid       - The config file parses and validates
//   2. Storage Writable   - Conversations can be saved
//   3. Server Reachable   - The backend answers /health (or server.url)
//
// Flags:
//   --json              Output in JSON format
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/transport"
)

// pingTimeout bounds the reachability check.
const pingTimeout = 5 * time.Second

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

// String returns the lowercase status name used in JSON output.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the bracketed marker for the status.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return SuccessStyle.Render("[OK]")
	case CheckWarn:
		return WarningStyle.Render("[!!]")
	case CheckFail:
		return ErrorStyle.Render("[FAIL]")
	default:
		return "?"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`

	status CheckStatus
}

func newCheck(name string, status CheckStatus, msg, fix string) *HealthCheck {
	return &HealthCheck{Name: name, Status: status.String(), Message: msg, Fix: fix, status: status}
}

// Render returns the check formatted for the terminal.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", c.status.Symbol(), ValueStyle.Render(c.Message))
	if c.status != CheckPass && c.Fix != "" {
		result += "\n     " + DimStyle.Render("-> "+c.Fix)
	}
	return result
}

// DoctorSummary counts check outcomes.
type DoctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// DoctorData is the data field of doctor's JSON output.
type DoctorData struct {
	Checks  []*HealthCheck `json:"checks"`
	Summary DoctorSummary  `json:"summary"`
}

// =============================================================================
// DOCTOR HANDLER
// =============================================================================

// HandleDoctor runs every check and reports the results.
func HandleDoctor(ctx context.Context, rt *Runtime, args Args) error {
	checks := runAllChecks(ctx, rt)

	var sum DoctorSummary
	for _, c := range checks {
		switch c.status {
		case CheckPass:
			sum.Passed++
		case CheckWarn:
			sum.Warned++
		case CheckFail:
			sum.Failed++
		}
	}
	sum.Healthy = sum.Failed == 0

	var failErr error
	if sum.Failed > 0 {
		failErr = fmt.Errorf("%d health check(s) failed", sum.Failed)
	}

	if args.JSON {
		resp := NewJSONResponse("doctor", DoctorData{Checks: checks, Summary: sum})
		if failErr != nil {
			msg := failErr.Error()
			resp.Success = false
			resp.Error = &msg
		}
		if err := resp.Print(rt.stdout()); err != nil {
			return err
		}
		return Reported(failErr)
	}

	out := rt.stdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render("streamchat doctor"))
	fmt.Fprintln(out, RenderSeparator(41))
	for _, c := range checks {
		fmt.Fprintln(out, c.Render())
	}
	fmt.Fprintln(out, RenderSeparator(41))

	parts := []string{fmt.Sprintf("%d passed", sum.Passed)}
	if sum.Warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", sum.Warned)))
	}
	if sum.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", sum.Failed)))
	}
	fmt.Fprintln(out, strings.Join(parts, ", "))
	fmt.Fprintln(out)

	return failErr
}

func runAllChecks(ctx context.Context, rt *Runtime) []*HealthCheck {
	return []*HealthCheck{
		checkConfigValid(rt),
		checkStorageWritable(rt),
		checkServerReachable(ctx, rt),
	}
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

func checkConfigValid(rt *Runtime) *HealthCheck {
	const name = "Config Valid"

	path, err := rt.configPath()
	if err != nil {
		return newCheck(name, CheckWarn, "Could not determine config path", "")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return newCheck(name, CheckPass, "Config valid (using defaults)", "")
	}
	if _, err := config.LoadFrom(path); err != nil {
		return newCheck(name, CheckFail, fmt.Sprintf("Config invalid: %s", err), "Run: streamchat config reset")
	}
	return newCheck(name, CheckPass, "Config valid ("+path+")", "")
}

func checkStorageWritable(rt *Runtime) *HealthCheck {
	const name = "Storage Writable"

	if rt.Config.Storage.Backend == config.BackendNone {
		return newCheck(name, CheckWarn, "Storage disabled; conversations are not saved", "Run: streamchat config set storage.backend file")
	}
	dir, err := rt.Config.StorageDir()
	if err != nil {
		return newCheck(name, CheckFail, fmt.Sprintf("Could not determine storage directory: %s", err), "")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return newCheck(name, CheckFail, fmt.Sprintf("Could not create storage directory: %s", err), "Create manually: mkdir -p "+dir)
	}
	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0600); err != nil {
		return newCheck(name, CheckFail, fmt.Sprintf("Storage directory not writable: %s", err), "Check permissions: chmod 700 "+dir)
	}
	os.Remove(testFile)
	return newCheck(name, CheckPass, fmt.Sprintf("Storage writable (%s)", rt.Config.Storage.Backend), "")
}

// healthChecker and pinger are implemented by *transport.Client.
type healthChecker interface {
	Health(ctx context.Context) (*transport.Health, error)
}

type pinger interface {
	Ping(ctx context.Context) (int, error)
}

func checkServerReachable(ctx context.Context, rt *Runtime) *HealthCheck {
	const name = "Server Reachable"
	url := rt.Config.Server.URL

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	var (
		health *transport.Health
		err    error
	)
	switch p := rt.Transport.(type) {
	case healthChecker:
		health, err = p.Health(ctx)
	case pinger:
		var status int
		if status, err = p.Ping(ctx); err == nil {
			health = &transport.Health{StatusCode: status, Fallback: true}
		}
	default:
		return newCheck(name, CheckWarn, "Transport cannot be checked", "")
	}

	switch {
	case err != nil:
		return newCheck(name, CheckFail, fmt.Sprintf("Cannot reach %s: %s", url, err),
			"Start the backend or run: streamchat config set server.url <url>")
	case health.StatusCode >= 500:
		return newCheck(name, CheckWarn, fmt.Sprintf("%s answered HTTP %d", url, health.StatusCode), "Check the backend logs")
	case health.Streaming != nil && !*health.Streaming:
		return newCheck(name, CheckWarn, fmt.Sprintf("Server reachable at %s (streaming: off)", url),
			"Run: streamchat config set server.mode once")
	case health.Streaming != nil:
		return newCheck(name, CheckPass, fmt.Sprintf("Server reachable at %s (streaming: on)", url), "")
	default:
		return newCheck(name, CheckPass, fmt.Sprintf("Server reachable at %s", url), "")
	}
}
