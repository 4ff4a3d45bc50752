// Package loadtest drives synthetic traffic against a running UniSphere
// server.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type LoadProfile string

const (
	ProfileLight  LoadProfile = "light"  // 5 req/s, 1 minute
	ProfileMedium LoadProfile = "medium" // 20 req/s, 2 minutes
	ProfileHeavy  LoadProfile = "heavy"  // 50 req/s, 5 minutes
	ProfileBurst  LoadProfile = "burst"  // 100 req/s for 30 seconds, no ramp
)

type ProfileConfig struct {
	RequestsPerSecond int
	Duration          time.Duration
	RampUpTime        time.Duration
	RampDownTime      time.Duration
	// ReadRatio is the share of requests that are reads. The rest toggle a
	// registration on EventID, or are skipped when EventID is zero.
	ReadRatio float64
	EventID   int64
}

var LoadProfiles = map[LoadProfile]ProfileConfig{
	ProfileLight:  {RequestsPerSecond: 5, Duration: time.Minute, RampUpTime: 10 * time.Second, RampDownTime: 10 * time.Second, ReadRatio: 0.8},
	ProfileMedium: {RequestsPerSecond: 20, Duration: 2 * time.Minute, RampUpTime: 20 * time.Second, RampDownTime: 20 * time.Second, ReadRatio: 0.8},
	ProfileHeavy:  {RequestsPerSecond: 50, Duration: 5 * time.Minute, RampUpTime: 30 * time.Second, RampDownTime: 30 * time.Second, ReadRatio: 0.7},
	ProfileBurst:  {RequestsPerSecond: 100, Duration: 30 * time.Second, ReadRatio: 0.9},
}

// LoadTester sends requests as a single authenticated user.
type LoadTester struct {
	baseURL    string
	token      string
	httpClient *http.Client
	stats      *Statistics
	registered atomic.Bool
}

func NewLoadTester(baseURL, token string) *LoadTester {
	return &LoadTester{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the default client, mainly for tests.
func (lt *LoadTester) WithHTTPClient(client *http.Client) *LoadTester {
	lt.httpClient = client
	return lt
}

type workItem struct {
	method   string
	path     string
	body     any
	endpoint string
}

func (lt *LoadTester) Run(ctx context.Context, profile LoadProfile) (*Statistics, error) {
	config, ok := LoadProfiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", profile)
	}
	return lt.RunCustom(ctx, config)
}

// RunCustom blocks until the profile has finished or ctx is cancelled.
func (lt *LoadTester) RunCustom(ctx context.Context, config ProfileConfig) (*Statistics, error) {
	if config.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("requests per second must be positive")
	}
	lt.stats = newStatistics()

	workers := max(config.RequestsPerSecond*2, 10)
	work := make(chan workItem, workers*2)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				lt.execute(ctx, item)
			}
		}()
	}

	lt.generate(ctx, config, work)
	close(work)
	wg.Wait()
	lt.stats.finish()
	return lt.stats, nil
}

func (lt *LoadTester) generate(ctx context.Context, config ProfileConfig, work chan<- workItem) {
	start := time.Now()
	total := config.RampUpTime + config.Duration + config.RampDownTime

	rps := currentRPS(0, config)
	ticker := time.NewTicker(time.Second / time.Duration(rps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed > total {
				return
			}
			if next := currentRPS(elapsed, config); next != rps {
				rps = next
				ticker.Reset(time.Second / time.Duration(rps))
			}

			item := lt.readRequest()
			if config.EventID > 0 && rand.Float64() >= config.ReadRatio {
				item = lt.registrationToggle(config.EventID)
			}
			select {
			case work <- item:
			case <-ctx.Done():
				return
			}
		}
	}
}

// currentRPS ramps linearly up to the target and back down, never below 1.
func currentRPS(elapsed time.Duration, config ProfileConfig) int {
	target := config.RequestsPerSecond
	scale := 1.0
	switch steadyEnd := config.RampUpTime + config.Duration; {
	case elapsed < config.RampUpTime:
		scale = float64(elapsed) / float64(config.RampUpTime)
	case elapsed >= steadyEnd && config.RampDownTime > 0:
		scale = 1 - float64(elapsed-steadyEnd)/float64(config.RampDownTime)
	}
	return max(int(float64(target)*scale), 1)
}

func (lt *LoadTester) readRequest() workItem {
	reads := []workItem{
		{method: http.MethodGet, path: "/health", endpoint: "health"},
		{method: http.MethodGet, path: "/api/v1/events?limit=20", endpoint: "list_events"},
		{method: http.MethodGet, path: "/api/v1/announcements?limit=20", endpoint: "list_announcements"},
		{method: http.MethodGet, path: "/api/v1/announcements/priority/high", endpoint: "high_priority"},
		{method: http.MethodGet, path: "/api/v1/user-places", endpoint: "list_places"},
	}
	return reads[rand.IntN(len(reads))]
}

// registrationToggle alternates between claiming and releasing a seat so a
// long run does not exhaust the event.
func (lt *LoadTester) registrationToggle(eventID int64) workItem {
	path := fmt.Sprintf("/api/v1/events/%d/register", eventID)
	if lt.registered.CompareAndSwap(false, true) {
		return workItem{method: http.MethodPost, path: path, body: map[string]any{}, endpoint: "register"}
	}
	lt.registered.Store(false)
	return workItem{method: http.MethodDelete, path: path, endpoint: "unregister"}
}

func (lt *LoadTester) execute(ctx context.Context, item workItem) {
	start := time.Now()
	status, err := lt.do(ctx, item.method, item.path, item.body, nil)
	if err != nil {
		lt.stats.record(item.endpoint, 0, time.Since(start))
		return
	}
	lt.stats.record(item.endpoint, status, time.Since(start))
}

// do sends one JSON request. out, when non-nil, receives the decoded body
// of a 2xx response.
func (lt *LoadTester) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, lt.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if lt.token != "" {
		req.Header.Set("Authorization", "Bearer "+lt.token)
	}

	resp, err := lt.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Statistics aggregates response codes and latencies per endpoint.
type Statistics struct {
	mu        sync.Mutex
	start     time.Time
	end       time.Time
	total     int64
	success   int64
	failed    int64
	byStatus  map[int]int64
	endpoints map[string]*EndpointStats
	latencies []time.Duration
}

type EndpointStats struct {
	Count     int64
	Errors    int64
	latencies []time.Duration
}

func newStatistics() *Statistics {
	return &Statistics{
		start:     time.Now(),
		byStatus:  map[int]int64{},
		endpoints: map[string]*EndpointStats{},
	}
}

func (s *Statistics) record(endpoint string, status int, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byStatus[status]++
	ep := s.endpoints[endpoint]
	if ep == nil {
		ep = &EndpointStats{}
		s.endpoints[endpoint] = ep
	}
	ep.Count++

	if status >= 200 && status < 300 {
		s.success++
	} else {
		s.failed++
		ep.Errors++
	}
	if status != 0 {
		s.latencies = append(s.latencies, latency)
		ep.latencies = append(ep.latencies, latency)
	}
}

func (s *Statistics) finish() {
	s.mu.Lock()
	s.end = time.Now()
	s.mu.Unlock()
}

func (s *Statistics) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// StatusCount reports how many responses had status; 0 counts transport
// errors.
func (s *Statistics) StatusCount(status int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byStatus[status]
}

func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	duration := s.end.Sub(s.start)
	fmt.Fprintf(&b, "\nLoad test results\n=================\n\n")
	fmt.Fprintf(&b, "Duration:        %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Total requests:  %d\n", s.total)
	if s.total > 0 {
		fmt.Fprintf(&b, "Successful:      %d (%.1f%%)\n", s.success, float64(s.success)/float64(s.total)*100)
		fmt.Fprintf(&b, "Failed:          %d (%.1f%%)\n", s.failed, float64(s.failed)/float64(s.total)*100)
	}
	if duration > 0 {
		fmt.Fprintf(&b, "Requests/sec:    %.2f\n", float64(s.total)/duration.Seconds())
	}

	if len(s.latencies) > 0 {
		fmt.Fprintf(&b, "\nLatency: p50 %s  p95 %s  p99 %s\n",
			percentile(s.latencies, 0.50), percentile(s.latencies, 0.95), percentile(s.latencies, 0.99))
	}

	codes := make([]int, 0, len(s.byStatus))
	for code := range s.byStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Fprintf(&b, "\nStatus codes:\n")
	for _, code := range codes {
		label := fmt.Sprint(code)
		if code == 0 {
			label = "transport error"
		}
		fmt.Fprintf(&b, "  %-16s %d\n", label, s.byStatus[code])
	}

	names := make([]string, 0, len(s.endpoints))
	for name := range s.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(&b, "\n%-20s %8s %8s %10s\n", "Endpoint", "Count", "Errors", "p95")
	for _, name := range names {
		ep := s.endpoints[name]
		fmt.Fprintf(&b, "%-20s %8d %8d %10s\n", name, ep.Count, ep.Errors, percentile(ep.latencies, 0.95))
	}
	return b.String()
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := min(int(float64(len(sorted))*p), len(sorted)-1)
	return sorted[index].Round(time.Microsecond)
}
