package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeReplicate simulates the prediction API. Per-version behavior is set by
// the test; everything else follows the real create/poll/download flow.
type fakeReplicate struct {
	mu sync.Mutex

	// status codes to return for prediction creates, consumed in order.
	// Empty or exhausted means 201 + a pollable prediction.
	createResponses map[string][]int
	createCalls     map[string]int

	server *httptest.Server
}

func newFakeReplicate(t *testing.T) *fakeReplicate {
	f := &fakeReplicate{
		createResponses: map[string][]int{},
		createCalls:     map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"urls":{"get":"%s/files/input"}}`, f.server.URL)
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Version string `json:"version"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("malformed prediction create body: %v", err)
		}

		f.mu.Lock()
		f.createCalls[req.Version]++
		var status int
		if queue := f.createResponses[req.Version]; len(queue) > 0 {
			status = queue[0]
			f.createResponses[req.Version] = queue[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"detail":"simulated %d"}`, status)
			return
		}
		fmt.Fprintf(w, `{"urls":{"get":"%s/predictions/%s"}}`, f.server.URL, req.Version)
	})
	mux.HandleFunc("/predictions/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":"succeeded","output":"%s/results/%s.png"}`,
			f.server.URL, strings.TrimPrefix(r.URL.Path, "/predictions/"))
	})
	mux.HandleFunc("/results/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "restored-by-%s", strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/results/"), ".png"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeReplicate) calls(version string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls[version]
}

func newTestProvider(baseURL string) *ReplicateProvider {
	return &ReplicateProvider{
		APIToken:     "test-token",
		APIBaseURL:   baseURL,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		backoffUnit:  0,
		pollInterval: time.Millisecond,
	}
}

func writeInputFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

func TestRestoreFallbackSecondarySucceeds(t *testing.T) {
	fake := newFakeReplicate(t)
	fake.createResponses[gfpganVersion] = []int{400}

	provider := newTestProvider(fake.server.URL)
	outputPath := filepath.Join(t.TempDir(), "out.jpg")

	var stages []string
	result := provider.Restore(context.Background(), writeInputFile(t), outputPath,
		Options{FaceEnhance: true}, func(stage string, percent int) {
			stages = append(stages, stage)
		})

	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	if result.OutputPath != outputPath {
		t.Fatalf("output path = %q, want %q", result.OutputPath, outputPath)
	}

	// The primary was tried exactly once and failed; the secondary served the
	// result; the tertiary was never touched.
	if got := fake.calls(gfpganVersion); got != 1 {
		t.Fatalf("GFPGAN create calls = %d, want 1", got)
	}
	if got := fake.calls(codeformerVersion); got != 1 {
		t.Fatalf("CodeFormer create calls = %d, want 1", got)
	}
	if got := fake.calls(realESRGANVersion); got != 0 {
		t.Fatalf("Real-ESRGAN create calls = %d, want 0", got)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("result not written: %v", err)
	}
	if string(content) != "restored-by-"+codeformerVersion {
		t.Fatalf("result content = %q, want the secondary's output", content)
	}
}

func TestRestoreAllCandidatesFail(t *testing.T) {
	fake := newFakeReplicate(t)
	fake.createResponses[gfpganVersion] = []int{400}
	fake.createResponses[codeformerVersion] = []int{400}
	fake.createResponses[realESRGANVersion] = []int{400}

	provider := newTestProvider(fake.server.URL)
	result := provider.Restore(context.Background(), writeInputFile(t),
		filepath.Join(t.TempDir(), "out.jpg"), Options{}, nil)

	if result.Success {
		t.Fatalf("expected failure when every candidate fails")
	}
	for _, name := range []string{"GFPGAN", "CodeFormer", "Real-ESRGAN"} {
		if !strings.Contains(result.Error, name) {
			t.Fatalf("aggregated error missing %s: %s", name, result.Error)
		}
	}
	if got := strings.Count(result.Error, ";"); got != 2 {
		t.Fatalf("aggregated error should carry exactly 3 records, got %q", result.Error)
	}
}

func TestRestoreRetriesRateLimitThenSucceeds(t *testing.T) {
	fake := newFakeReplicate(t)
	fake.createResponses[gfpganVersion] = []int{429, 429}

	provider := newTestProvider(fake.server.URL)
	result := provider.Restore(context.Background(), writeInputFile(t),
		filepath.Join(t.TempDir(), "out.jpg"), Options{}, nil)

	if !result.Success {
		t.Fatalf("expected success after rate-limit retries, got: %s", result.Error)
	}
	// Two 429s then a successful create, all against the primary.
	if got := fake.calls(gfpganVersion); got != 3 {
		t.Fatalf("GFPGAN create calls = %d, want 3", got)
	}
	if got := fake.calls(codeformerVersion); got != 0 {
		t.Fatalf("fallback ran despite primary success, calls = %d", got)
	}
}

func TestRestoreRateLimitExhaustsAttempts(t *testing.T) {
	fake := newFakeReplicate(t)
	fake.createResponses[gfpganVersion] = []int{429, 429, 429, 429}

	provider := newTestProvider(fake.server.URL)
	result := provider.Restore(context.Background(), writeInputFile(t),
		filepath.Join(t.TempDir(), "out.jpg"), Options{}, nil)

	// Primary exhausts its retry budget; secondary takes over.
	if !result.Success {
		t.Fatalf("expected fallback success, got: %s", result.Error)
	}
	if got := fake.calls(gfpganVersion); got != 4 {
		t.Fatalf("GFPGAN create calls = %d, want 4 (bounded retries)", got)
	}
	if got := fake.calls(codeformerVersion); got != 1 {
		t.Fatalf("CodeFormer create calls = %d, want 1", got)
	}
}

func TestRestoreCreditsExhaustedFailsCandidateImmediately(t *testing.T) {
	fake := newFakeReplicate(t)
	fake.createResponses[gfpganVersion] = []int{402}

	provider := newTestProvider(fake.server.URL)
	result := provider.Restore(context.Background(), writeInputFile(t),
		filepath.Join(t.TempDir(), "out.jpg"), Options{}, nil)

	if !result.Success {
		t.Fatalf("expected fallback success, got: %s", result.Error)
	}
	// A 402 is not retried.
	if got := fake.calls(gfpganVersion); got != 1 {
		t.Fatalf("GFPGAN create calls = %d, want 1", got)
	}
}

func TestRestoreUpscalePassRunsAfterFaceRestoration(t *testing.T) {
	fake := newFakeReplicate(t)

	provider := newTestProvider(fake.server.URL)
	result := provider.Restore(context.Background(), writeInputFile(t),
		filepath.Join(t.TempDir(), "out.jpg"), Options{Upscale: true}, nil)

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	// GFPGAN once for restoration, Real-ESRGAN once for the extra pass.
	if got := fake.calls(gfpganVersion); got != 1 {
		t.Fatalf("GFPGAN create calls = %d, want 1", got)
	}
	if got := fake.calls(realESRGANVersion); got != 1 {
		t.Fatalf("Real-ESRGAN upscale pass calls = %d, want 1", got)
	}
}

func TestRestoreColorizeSkipsUpscaleAndWarns(t *testing.T) {
	fake := newFakeReplicate(t)

	provider := newTestProvider(fake.server.URL)

	var stages []string
	result := provider.Restore(context.Background(), writeInputFile(t),
		filepath.Join(t.TempDir(), "out.jpg"), Options{Upscale: true, Colorize: true},
		func(stage string, percent int) {
			stages = append(stages, stage)
		})

	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if got := fake.calls(realESRGANVersion); got != 0 {
		t.Fatalf("upscale pass ran despite colorize request, calls = %d", got)
	}

	warned := false
	for _, s := range stages {
		if strings.Contains(s, "Colorization not available") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("colorization downgrade warning missing from stages: %v", stages)
	}
}

func TestOutputURL(t *testing.T) {
	if got, err := outputURL(json.RawMessage(`"https://x/a.png"`)); err != nil || got != "https://x/a.png" {
		t.Fatalf("string output = %q, %v", got, err)
	}
	if got, err := outputURL(json.RawMessage(`["https://x/a.png","https://x/b.png"]`)); err != nil || got != "https://x/b.png" {
		t.Fatalf("list output should take the last entry, got %q, %v", got, err)
	}
	if _, err := outputURL(json.RawMessage(`null`)); err == nil {
		t.Fatalf("expected error for missing output")
	}
	if _, err := outputURL(json.RawMessage(`[]`)); err == nil {
		t.Fatalf("expected error for empty list output")
	}
}

func TestMockProviderCopiesInput(t *testing.T) {
	inputPath := writeInputFile(t)
	outputPath := filepath.Join(t.TempDir(), "out.jpg")

	provider := &MockProvider{StageDelay: 0}

	var percents []int
	result := provider.Restore(context.Background(), inputPath, outputPath, Options{},
		func(stage string, percent int) {
			percents = append(percents, percent)
		})

	if !result.Success {
		t.Fatalf("mock restore failed: %s", result.Error)
	}
	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(content) != "jpeg-bytes" {
		t.Fatalf("output content = %q, want copy of input", content)
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("progress should end at 100, got %v", percents)
	}
}

func TestNewProviderFromEnvSelection(t *testing.T) {
	t.Setenv("AI_PROVIDER", "replicate")
	if _, ok := NewProviderFromEnv().(*ReplicateProvider); !ok {
		t.Fatalf("expected replicate provider")
	}

	t.Setenv("AI_PROVIDER", "mock")
	if _, ok := NewProviderFromEnv().(*MockProvider); !ok {
		t.Fatalf("expected mock provider")
	}

	t.Setenv("AI_PROVIDER", "nonsense")
	if _, ok := NewProviderFromEnv().(*MockProvider); !ok {
		t.Fatalf("unknown provider should fall back to mock")
	}
}
