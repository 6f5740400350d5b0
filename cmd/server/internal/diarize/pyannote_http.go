package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

const defaultDiarizeTimeout = 10 * time.Minute

// PyannoteHTTP implements Diarizer against a pyannote-style HTTP service
// exposing POST /api/diarize with a multipart audio upload and a JSON
// response of speaker turns.
type PyannoteHTTP struct {
	apiURL     string
	httpClient *http.Client
}

// NewPyannoteHTTP creates a client for the diarization service at apiURL.
func NewPyannoteHTTP(apiURL string) *PyannoteHTTP {
	return &PyannoteHTTP{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: defaultDiarizeTimeout,
		},
	}
}

// Diarize uploads the audio file and parses the JSON turn list.
//
// Failure classification mirrors the transcriber: connection errors and 5xx
// responses are ModelUnavailable (transient), 4xx responses are DecodeError.
func (p *PyannoteHTTP) Diarize(ctx context.Context, audioPath string, opts *Options) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.KindDecodeError, "diarize",
			"failed to open audio file", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}

	if opts != nil && opts.MinSpeakers > 0 {
		if err := writer.WriteField("min_speakers", strconv.Itoa(opts.MinSpeakers)); err != nil {
			return nil, fmt.Errorf("failed to write min_speakers field: %w", err)
		}
	}
	if opts != nil && opts.MaxSpeakers > 0 {
		if err := writer.WriteField("max_speakers", strconv.Itoa(opts.MaxSpeakers)); err != nil {
			return nil, fmt.Errorf("failed to write max_speakers field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	if opts != nil && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	endpoint := fmt.Sprintf("%s/api/diarize", p.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pipeline.NewStageError(pipeline.KindModelUnavailable, "diarize",
			"diarization service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return nil, pipeline.NewStageError(pipeline.KindModelUnavailable, "diarize",
				fmt.Sprintf("diarization API returned status %d: %s", resp.StatusCode, respBody), nil)
		}
		return nil, pipeline.NewStageError(pipeline.KindDecodeError, "diarize",
			fmt.Sprintf("diarization API rejected audio with status %d: %s", resp.StatusCode, respBody), nil)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pipeline.NewStageError(pipeline.KindModelUnavailable, "diarize",
			"failed to parse diarization JSON response", err)
	}

	return &result, nil
}

// HealthCheck probes the service health endpoint.
func (p *PyannoteHTTP) HealthCheck(ctx context.Context) (bool, error) {
	endpoint := fmt.Sprintf("%s/health", p.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return true, nil
	}
	return false, fmt.Errorf("health check failed: status %d", resp.StatusCode)
}

// Name identifies this implementation in logs and metrics.
func (p *PyannoteHTTP) Name() string {
	return "pyannote-http"
}
