package restore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

const defaultReplicateAPIBaseURL = "https://api.replicate.com/v1"

// Pinned model versions. Free-tier models only.
const (
	// https://replicate.com/tencentarc/gfpgan
	gfpganVersion = "0fbacf7afc6c144e5be9767cff80f25aff23e52b0708f17e20f9879b2f21516c"
	// https://replicate.com/sczhou/codeformer
	codeformerVersion = "7de2ea26c616d5bf2245ad0d5e24f0ff9a6204578a5c876db53142edd9d2cd56"
	// https://replicate.com/nightmareai/real-esrgan
	realESRGANVersion = "f121d640bd286e1fdc67f9799164c1d5be36ff74576ee11c803ae5b665dd46aa"
)

const (
	createMaxAttempts = 4
	pollMaxAttempts   = 120
)

// ReplicateProvider drives restoration through the Replicate prediction API
// with an ordered fallback chain: GFPGAN first (best for old photos), then
// CodeFormer, then Real-ESRGAN as an upscale-only last resort.
type ReplicateProvider struct {
	APIToken   string
	APIBaseURL string

	HTTPClient *http.Client

	// backoffUnit scales the 429/5xx retry delays; pollInterval paces
	// prediction polling. Tests shrink both.
	backoffUnit  time.Duration
	pollInterval time.Duration
}

// NewReplicateProviderFromEnv builds the provider from environment settings.
func NewReplicateProviderFromEnv() *ReplicateProvider {
	return &ReplicateProvider{
		APIToken:     strings.TrimSpace(env.GetEnv("REPLICATE_API_TOKEN", "")),
		APIBaseURL:   strings.TrimRight(env.GetEnv("REPLICATE_API_BASE_URL", defaultReplicateAPIBaseURL), "/"),
		HTTPClient:   &http.Client{Timeout: 180 * time.Second},
		backoffUnit:  5 * time.Second,
		pollInterval: time.Second,
	}
}

type candidate struct {
	name    string
	version string
	input   func(imageURL string) map[string]interface{}
	percent int
}

func (p *ReplicateProvider) candidates() []candidate {
	return []candidate{
		{
			name:    "GFPGAN",
			version: gfpganVersion,
			input: func(imageURL string) map[string]interface{} {
				return map[string]interface{}{"img": imageURL, "version": "v1.4", "scale": 2}
			},
			percent: 20,
		},
		{
			name:    "CodeFormer",
			version: codeformerVersion,
			input: func(imageURL string) map[string]interface{} {
				return map[string]interface{}{"image": imageURL, "upscale": 2, "codeformer_fidelity": 0.7}
			},
			percent: 25,
		},
		{
			name:    "Real-ESRGAN",
			version: realESRGANVersion,
			input: func(imageURL string) map[string]interface{} {
				return map[string]interface{}{"image": imageURL, "scale": 2, "face_enhance": true}
			},
			percent: 30,
		},
	}
}

// Restore uploads the photo, walks the fallback chain until one candidate
// succeeds, optionally runs an extra upscale pass, and downloads the result.
func (p *ReplicateProvider) Restore(ctx context.Context, inputPath, outputPath string, opts Options, progress ProgressFunc) Result {
	report(progress, "Uploading image...", 10)

	fileURL, err := p.uploadFile(ctx, inputPath)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("upload failed: %s", truncate(err.Error(), 200))}
	}

	currentURL := ""
	var candidateErrors []string
	for _, c := range p.candidates() {
		log.Infof("[Restore] Trying %s...", c.name)
		report(progress, fmt.Sprintf("Enhancing faces (%s)...", c.name), c.percent)

		url, runErr := p.runModel(ctx, c.version, c.input(fileURL), c.name)
		if runErr != nil {
			log.Warnf("[Restore] %s failed: %s", c.name, truncate(runErr.Error(), 200))
			candidateErrors = append(candidateErrors, fmt.Sprintf("%s: %s", c.name, truncate(runErr.Error(), 80)))
			continue
		}
		log.Infof("[Restore] %s succeeded", c.name)
		currentURL = url
		break
	}

	if currentURL == "" {
		return Result{
			Success: false,
			Error:   "all restoration methods failed: " + strings.Join(candidateErrors, "; "),
		}
	}

	// Extra upscaling pass after successful face restoration. Skipped when
	// colorization was requested to keep the pipeline short.
	if opts.Upscale && !opts.Colorize {
		report(progress, "Additional upscaling (Real-ESRGAN)...", 60)
		upscaled, upErr := p.runModel(ctx, realESRGANVersion,
			map[string]interface{}{"image": currentURL, "scale": 2, "face_enhance": false}, "Real-ESRGAN")
		if upErr != nil {
			log.Infof("[Restore] Additional upscaling skipped: %s", truncate(upErr.Error(), 100))
		} else {
			currentURL = upscaled
		}
	}

	// The free-tier model list has no colorization model; downgrade to a
	// warning through the progress channel.
	if opts.Colorize {
		log.Warn("[Restore] Colorization not available in free tier - skipping")
		report(progress, "Colorization not available in free tier", 80)
	}

	report(progress, "Downloading result...", 95)
	if err := p.download(ctx, currentURL, outputPath); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("result download failed: %s", truncate(err.Error(), 200))}
	}

	report(progress, "Complete", 100)
	return Result{Success: true, OutputPath: outputPath}
}

// runModel creates a prediction and polls until a terminal state. 429 and 5xx
// responses are retried with a fixed escalating backoff (bounded attempts);
// other 4xx fail the candidate immediately.
func (p *ReplicateProvider) runModel(ctx context.Context, version string, modelInput map[string]interface{}, modelName string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{"version": version, "input": modelInput})
	if err != nil {
		return "", err
	}

	var prediction struct {
		URLs struct {
			Get string `json:"get"`
		} `json:"urls"`
	}

	created := false
	for attempt := 0; attempt < createMaxAttempts && !created; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.APIBaseURL+"/predictions", bytes.NewReader(body))
		if reqErr != nil {
			return "", reqErr
		}
		req.Header.Set("Authorization", "Bearer "+p.APIToken)
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := p.HTTPClient.Do(req)
		if doErr != nil {
			return "", doErr
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := time.Duration(attempt+1) * p.backoffUnit // 5s, 10s, 15s, 20s
			log.Warnf("[Restore] %s got status %d, retrying in %s...", modelName, resp.StatusCode, wait)
			if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
				return "", sleepErr
			}
			continue
		case resp.StatusCode == http.StatusPaymentRequired:
			return "", fmt.Errorf("%s credits exhausted (402)", modelName)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return "", fmt.Errorf("%s prediction create failed: status=%d body=%s", modelName, resp.StatusCode, truncate(string(respBody), 200))
		}

		if err := json.Unmarshal(respBody, &prediction); err != nil {
			return "", fmt.Errorf("%s returned malformed prediction: %w", modelName, err)
		}
		created = true
	}
	if !created {
		return "", fmt.Errorf("%s rate limit exceeded after retries", modelName)
	}
	if prediction.URLs.Get == "" {
		return "", fmt.Errorf("%s prediction missing poll URL", modelName)
	}

	return p.pollPrediction(ctx, prediction.URLs.Get, modelName)
}

func (p *ReplicateProvider) pollPrediction(ctx context.Context, pollURL, modelName string) (string, error) {
	for i := 0; i < pollMaxAttempts; i++ {
		if err := sleepCtx(ctx, p.pollInterval); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+p.APIToken)

		resp, err := p.HTTPClient.Do(req)
		if err != nil {
			return "", err
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("%s prediction poll failed: status=%d", modelName, resp.StatusCode)
		}

		var data struct {
			Status string          `json:"status"`
			Output json.RawMessage `json:"output"`
			Error  string          `json:"error"`
		}
		if err := json.Unmarshal(respBody, &data); err != nil {
			return "", fmt.Errorf("%s returned malformed poll response: %w", modelName, err)
		}

		switch data.Status {
		case "succeeded":
			return outputURL(data.Output)
		case "failed", "canceled":
			errMsg := data.Error
			if errMsg == "" {
				errMsg = "unknown"
			}
			return "", fmt.Errorf("%s prediction %s: %s", modelName, data.Status, errMsg)
		}
	}
	return "", fmt.Errorf("%s prediction timed out", modelName)
}

// outputURL handles both string and list-of-strings prediction outputs.
func outputURL(raw json.RawMessage) (string, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[len(list)-1], nil
	}
	return "", errors.New("prediction output missing or malformed")
}

// uploadFile sends the local photo to the files API and returns its serving URL.
func (p *ReplicateProvider) uploadFile(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("content", filepath.Base(filePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.APIBaseURL+"/files", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("file upload failed: status=%d body=%s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var out struct {
		URLs struct {
			Get string `json:"get"`
		} `json:"urls"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	if out.URLs.Get == "" {
		return "", errors.New("file upload response missing serving URL")
	}
	return out.URLs.Get, nil
}

func (p *ReplicateProvider) download(ctx context.Context, url, outputPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("result fetch failed: status=%d", resp.StatusCode)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
