package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

func daemonAddr() string {
	if addr := os.Getenv("DAEMON_ADDR"); addr != "" {
		return addr
	}
	return "http://127.0.0.1:8080"
}

func daemonClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func cmdFlag(args []string) error {
	fs := flag.NewFlagSet("flag", flag.ExitOnError)
	reason := fs.String("reason", "other", "flag reason (incorrect_output, ambiguous_prompt, insufficient_context, bad_hint, other)")
	notes := fs.String("notes", "", "free-form description of the problem")
	session := fs.String("session", "", "practice session id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: tensordrill flag [options] <problem-id>")
	}
	problemID := fs.Arg(0)

	body, err := json.Marshal(map[string]string{
		"problem_id": problemID,
		"reason":     *reason,
		"notes":      *notes,
		"session_id": *session,
	})
	if err != nil {
		return err
	}

	resp, err := daemonClient().Post(daemonAddr()+"/v1/flags", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", daemonAddr(), err)
	}
	defer resp.Body.Close()

	var result struct {
		Accepted           bool   `json:"accepted"`
		Message            string `json:"message"`
		FlagID             string `json:"flag_id"`
		Deduplicated       bool   `json:"deduplicated"`
		RateLimited        bool   `json:"rate_limited"`
		VerificationStatus string `json:"verification_status"`
		TriageAction       string `json:"triage_action"`
		ReviewQueueSize    int    `json:"review_queue_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	switch {
	case result.RateLimited:
		fmt.Printf("Rate limited: %s\n", result.Message)
	case result.Deduplicated:
		fmt.Printf("Duplicate of an open flag: %s\n", result.Message)
	case !result.Accepted:
		fmt.Printf("Rejected: %s\n", result.Message)
	default:
		fmt.Printf("Flag %s accepted (%s)\n", result.FlagID, result.TriageAction)
		fmt.Printf("Card status: %s, review queue size: %d\n",
			result.VerificationStatus, result.ReviewQueueSize)
	}
	return nil
}

func cmdStatus(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tensordrill status <problem-id>")
	}
	problemID := args[0]

	resp, err := daemonClient().Get(daemonAddr() + "/v1/verification/" + url.PathEscape(problemID))
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", daemonAddr(), err)
	}
	defer resp.Body.Close()

	var result struct {
		ProblemID    string   `json:"problem_id"`
		Status       string   `json:"status"`
		ApprovalType string   `json:"approval_type"`
		Blockers     []string `json:"blockers"`
		Schedulable  bool     `json:"schedulable"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Printf("Problem:     %s\n", problemID)
	fmt.Printf("Status:      %s\n", result.Status)
	if result.ApprovalType != "" {
		fmt.Printf("Approval:    %s\n", result.ApprovalType)
	}
	fmt.Printf("Schedulable: %v\n", result.Schedulable)
	for _, blocker := range result.Blockers {
		fmt.Printf("  blocker: %s\n", blocker)
	}
	return nil
}

func cmdQueue(args []string) error {
	resp, err := daemonClient().Get(daemonAddr() + "/v1/review-queue")
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", daemonAddr(), err)
	}
	defer resp.Body.Close()

	var result struct {
		TotalCount int `json:"total_count"`
		Flags      []struct {
			FlagID      string `json:"flag_id"`
			ProblemID   string `json:"problem_id"`
			Reason      string `json:"reason"`
			Notes       string `json:"notes"`
			SubmittedAt string `json:"submitted_at"`
		} `json:"flags"`
		Statuses map[string]string `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Printf("Review queue: %d open flag(s)\n", result.TotalCount)
	for _, f := range result.Flags {
		fmt.Printf("  %s  %-30s %-20s %s\n", f.FlagID, f.ProblemID, f.Reason, f.SubmittedAt)
		if f.Notes != "" {
			fmt.Printf("      %s\n", f.Notes)
		}
	}
	if len(result.Statuses) > 0 {
		fmt.Println("\nCard statuses:")
		for id, status := range result.Statuses {
			fmt.Printf("  %-40s %s\n", id, status)
		}
	}
	return nil
}
