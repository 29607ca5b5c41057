package restore

import (
	"context"
	"strings"

	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

// Options are the restoration flags requested at upload time.
type Options struct {
	FaceEnhance bool
	Colorize    bool
	Upscale     bool
}

// Result is the outcome of a restoration run. The orchestrator never returns
// an error past its boundary; failures are carried in the result.
type Result struct {
	Success    bool
	OutputPath string
	Error      string
}

// ProgressFunc is the side channel for stage/percent reporting.
type ProgressFunc func(stage string, percent int)

// Provider runs a photo through an AI restoration pipeline.
type Provider interface {
	Restore(ctx context.Context, inputPath, outputPath string, opts Options, progress ProgressFunc) Result
}

// Provider names form a closed set, selected once at startup.
const (
	ProviderReplicate = "replicate"
	ProviderMock      = "mock"
)

// NewProviderFromEnv selects the configured provider. Unknown values fall back
// to the mock provider so a misconfigured box still serves the upload flow.
func NewProviderFromEnv() Provider {
	switch strings.ToLower(strings.TrimSpace(env.GetEnv("AI_PROVIDER", ProviderMock))) {
	case ProviderReplicate:
		return NewReplicateProviderFromEnv()
	default:
		return NewMockProvider()
	}
}

// ProviderName reports the configured provider for health reporting.
func ProviderName() string {
	name := strings.ToLower(strings.TrimSpace(env.GetEnv("AI_PROVIDER", ProviderMock)))
	if name != ProviderReplicate {
		name = ProviderMock
	}
	return name
}

func report(progress ProgressFunc, stage string, percent int) {
	if progress != nil {
		progress(stage, percent)
	}
}

// truncate bounds provider error text before aggregation.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
