package restore

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// MockProvider copies the input photo to the output path after staged delays.
// It exists to exercise the upload/poll/download flow without remote calls.
type MockProvider struct {
	// StageDelay paces the simulated stages; tests set it to zero.
	StageDelay time.Duration
}

// NewMockProvider returns a mock provider with production pacing.
func NewMockProvider() *MockProvider {
	return &MockProvider{StageDelay: 1500 * time.Millisecond}
}

func (p *MockProvider) Restore(ctx context.Context, inputPath, outputPath string, opts Options, progress ProgressFunc) Result {
	type stage struct {
		name    string
		percent int
	}
	stages := []stage{
		{"Analyzing image...", 20},
		{"Enhancing faces...", 50},
		{"Upscaling resolution...", 80},
	}
	if opts.Colorize {
		stages = append(stages, stage{"Colorizing...", 90})
	}
	stages = append(stages, stage{"Generating result...", 100})

	for _, s := range stages {
		report(progress, s.name, s.percent)
		if err := sleepCtx(ctx, p.StageDelay); err != nil {
			return Result{Success: false, Error: err.Error()}
		}
	}

	if err := copyFile(inputPath, outputPath); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("copy failed: %s", err)}
	}
	return Result{Success: true, OutputPath: outputPath}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
