package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Target is one profile to resolve.
type Target struct {
	EntityType string
	ID         string
}

func (t Target) path() string {
	return "/profile/" + t.EntityType + "/" + url.PathEscape(t.ID)
}

// Result tracks probe outcomes.
type Result struct {
	Checked  int64
	Unstable int64
	Errors   int64

	totalNanos atomic.Int64
	maxNanos   atomic.Int64
}

// AvgLatency is the mean time per profile request.
func (r *Result) AvgLatency() time.Duration {
	requests := 2 * (r.Checked - r.Errors)
	if requests <= 0 {
		return 0
	}
	return time.Duration(r.totalNanos.Load() / requests)
}

// MaxLatency is the slowest profile request observed.
func (r *Result) MaxLatency() time.Duration {
	return time.Duration(r.maxNanos.Load())
}

func (r *Result) observe(d time.Duration) {
	n := int64(d)
	r.totalNanos.Add(n)
	for {
		cur := r.maxNanos.Load()
		if n <= cur || r.maxNanos.CompareAndSwap(cur, n) {
			return
		}
	}
}

// Prober drives a running server through one session.
type Prober struct {
	client    *http.Client
	baseURL   string
	sessionID string
	workers   int
	out       io.Writer
	verbose   bool
}

// CheckHealth fails unless /health answers 200.
func (p *Prober) CheckHealth(ctx context.Context) error {
	body, _, err := p.get(ctx, "/health", false)
	if err != nil {
		return err
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("server reports %q", health.Status)
	}
	return nil
}

// Reset asks the server for a fresh snapshot.
func (p *Prober) Reset(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/session/reset", nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("X-Session-ID", p.sessionID)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("reset: status %d", resp.StatusCode)
	}

	var out struct {
		Generation int `json:"generation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Generation, nil
}

// Targets lists up to limit beneficiaries plus every distinct state,
// district and village they live in.
func (p *Prober) Targets(ctx context.Context, limit int) ([]Target, error) {
	body, _, err := p.get(ctx, fmt.Sprintf("/beneficiaries?limit=%d", limit), true)
	if err != nil {
		return nil, err
	}

	var list struct {
		Beneficiaries []struct {
			ID       string `json:"id"`
			Location struct {
				State    string `json:"state"`
				District string `json:"district"`
				Village  string `json:"village"`
			} `json:"location"`
		} `json:"beneficiaries"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode beneficiaries: %w", err)
	}

	var targets []Target
	seen := make(map[Target]bool)
	add := func(t Target) {
		if t.ID == "" || seen[t] {
			return
		}
		seen[t] = true
		targets = append(targets, t)
	}

	for _, b := range list.Beneficiaries {
		add(Target{"beneficiary", b.ID})
		add(Target{"state", b.Location.State})
		add(Target{"district", b.Location.District})
		add(Target{"village", b.Location.Village})
	}
	return targets, nil
}

// Run resolves every target twice and counts responses that differ.
func (p *Prober) Run(ctx context.Context, targets []Target) *Result {
	res := &Result{}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.workers, 1))

	for _, t := range targets {
		g.Go(func() error {
			atomic.AddInt64(&res.Checked, 1)

			first, d1, err := p.get(gCtx, t.path(), true)
			if err != nil {
				atomic.AddInt64(&res.Errors, 1)
				p.logf("ERROR %s %s: %v\n", t.EntityType, t.ID, err)
				return nil
			}
			second, d2, err := p.get(gCtx, t.path(), true)
			if err != nil {
				atomic.AddInt64(&res.Errors, 1)
				p.logf("ERROR %s %s: %v\n", t.EntityType, t.ID, err)
				return nil
			}
			res.observe(d1)
			res.observe(d2)

			if !bytes.Equal(first, second) {
				atomic.AddInt64(&res.Unstable, 1)
				p.logf("UNSTABLE %s %s\n", t.EntityType, t.ID)
				return nil
			}
			p.logf("ok %s %s (%v)\n", t.EntityType, t.ID, d1.Round(time.Microsecond))
			return nil
		})
	}

	// Workers never return errors; failures are tallied in res.
	_ = g.Wait()
	return res
}

func (p *Prober) get(ctx context.Context, path string, withSession bool) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if withSession {
		req.Header.Set("X-Session-ID", p.sessionID)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, elapsed, fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, elapsed, nil
}

func (p *Prober) logf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(p.out, format, args...)
	}
}

func printResults(w io.Writer, r *Result, duration time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "PROBE RESULTS")
	fmt.Fprintf(w, "   Profiles checked: %d\n", r.Checked)
	fmt.Fprintf(w, "   Unstable:         %d\n", r.Unstable)
	fmt.Fprintf(w, "   Errors:           %d\n", r.Errors)
	fmt.Fprintf(w, "   Total Duration:   %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "   Avg Latency:      %v\n", r.AvgLatency().Round(time.Microsecond))
	fmt.Fprintf(w, "   Max Latency:      %v\n", r.MaxLatency().Round(time.Microsecond))
	fmt.Fprintln(w)
}
