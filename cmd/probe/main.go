// Probe checks a running WelfareShield server: every profile reachable from
// the beneficiary list must resolve, and resolve identically twice within
// one session.
//
// Usage:
//
//	go run ./cmd/probe --url http://localhost:8080 --limit 200 --workers 16
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	probeURL     string
	probeSession string
	probeLimit   int
	probeWorkers int
	probeReset   bool
	probeVerbose bool
	probeTimeout time.Duration
)

var errProbeFailed = errors.New("probe found unstable or failing profiles")

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "probe",
		Short:         "Checks profile stability and latency against a running server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runProbe,
	}

	cmd.Flags().StringVar(&probeURL, "url", "http://localhost:8080", "WelfareShield base URL")
	cmd.Flags().StringVar(&probeSession, "session", "", "Session ID (random when empty)")
	cmd.Flags().IntVar(&probeLimit, "limit", 100, "Beneficiaries to expand into profile targets")
	cmd.Flags().IntVar(&probeWorkers, "workers", 8, "Concurrent requests")
	cmd.Flags().BoolVar(&probeReset, "reset", false, "Reset the session before probing")
	cmd.Flags().BoolVar(&probeVerbose, "verbose", false, "Print each profile result")
	cmd.Flags().DurationVar(&probeTimeout, "timeout", 10*time.Second, "Per-request timeout")
	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if probeSession == "" {
		probeSession = "probe-" + uuid.New().String()
	}

	p := &Prober{
		client:    &http.Client{Timeout: probeTimeout},
		baseURL:   probeURL,
		sessionID: probeSession,
		workers:   probeWorkers,
		out:       out,
		verbose:   probeVerbose,
	}

	fmt.Fprintf(out, "URL:      %s\n", probeURL)
	fmt.Fprintf(out, "Session:  %s\n", probeSession)
	fmt.Fprintf(out, "Workers:  %d\n", probeWorkers)
	fmt.Fprintf(out, "Limit:    %d\n", probeLimit)

	if err := p.CheckHealth(ctx); err != nil {
		return fmt.Errorf("server not reachable at %s: %w", probeURL, err)
	}

	if probeReset {
		generation, err := p.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Reset:    generation %d\n", generation)
	}

	targets, err := p.Targets(ctx, probeLimit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Targets:  %d\n", len(targets))

	start := time.Now()
	res := p.Run(ctx, targets)
	printResults(out, res, time.Since(start))

	if res.Unstable > 0 || res.Errors > 0 {
		return errProbeFailed
	}
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
