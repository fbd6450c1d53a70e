package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/flying-pisces/mkd-automation-sub002/internal/diag"
)

// version is stamped by the build
var version = "dev"

// daemonStatus is the subset of the connector's /status payload the
// doctor shows in its summary line.
type daemonStatus struct {
	Host struct {
		Connected bool   `json:"connected"`
		LastError string `json:"last_error"`
		Pending   int    `json:"pending"`
	} `json:"host"`
	Recording struct {
		Active   bool   `json:"active"`
		State    string `json:"state"`
		Sessions int    `json:"sessions"`
	} `json:"recording"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	Version       string  `json:"version"`
}

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8765", "Connector daemon address")
	jsonOut := flag.Bool("json", false, "Print the report as JSON instead of a table")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	client := resty.New().
		SetBaseURL(*addr).
		SetTimeout(*timeout).
		SetHeader("User-Agent", "mkd-doctor/"+version)

	report, err := fetchReport(client)
	if err != nil {
		// An unreachable daemon is itself a finding, not a crash.
		report = unreachableReport(*addr, err)
	}

	if *jsonOut {
		printJSON(report)
	} else {
		status := fetchStatus(client)
		printTable(report, status)
	}

	if !report.Healthy {
		os.Exit(1)
	}
}

func fetchReport(client *resty.Client) (*diag.Report, error) {
	var report diag.Report
	resp, err := client.R().SetResult(&report).Get("/diagnostics")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("diagnostics returned %s", resp.Status())
	}
	return &report, nil
}

// fetchStatus is best-effort; the table just omits the summary line
// when the daemon cannot answer.
func fetchStatus(client *resty.Client) *daemonStatus {
	var status daemonStatus
	resp, err := client.R().SetResult(&status).Get("/status")
	if err != nil || resp.IsError() {
		return nil
	}
	return &status
}

func unreachableReport(addr string, err error) *diag.Report {
	return &diag.Report{
		Healthy: false,
		Checks: []diag.Check{{
			Name:   "daemon",
			Level:  diag.Fail,
			Detail: fmt.Sprintf("connector not reachable at %s: %v", addr, err),
			Remedy: "start the daemon with connectord, or pass -addr if it listens elsewhere",
		}},
		Timestamp: time.Now(),
	}
}

func printJSON(report *diag.Report) {
	data, err := sonic.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func printTable(report *diag.Report, status *daemonStatus) {
	fmt.Printf("MKD Connector diagnostics at %s\n", report.Timestamp.Format(time.RFC1123))
	if status != nil {
		fmt.Printf("daemon %s, up %s, host %s, %d stored recordings\n",
			status.Version,
			(time.Duration(status.UptimeSeconds) * time.Second).String(),
			hostWord(status),
			status.Recording.Sessions)
	}
	fmt.Println()

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	var passed, warned, failed int
	for _, check := range report.Checks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", levelTag(check.Level), check.Name, check.Detail)
		if check.Remedy != "" {
			fmt.Fprintf(tw, "\t\tremedy: %s\n", check.Remedy)
		}
		switch check.Level {
		case diag.Pass:
			passed++
		case diag.Warn:
			warned++
		case diag.Fail:
			failed++
		}
	}
	tw.Flush()

	fmt.Printf("\n%d passed, %d warnings, %d failed\n", passed, warned, failed)
	if !report.Healthy {
		fmt.Println("result: NOT HEALTHY")
	}
}

func hostWord(status *daemonStatus) string {
	if status.Host.Connected {
		return "connected"
	}
	if status.Host.LastError != "" {
		return "disconnected (" + status.Host.LastError + ")"
	}
	return "disconnected"
}

func levelTag(level diag.Level) string {
	switch level {
	case diag.Pass:
		return "PASS"
	case diag.Warn:
		return "WARN"
	case diag.Fail:
		return "FAIL"
	}
	return string(level)
}
