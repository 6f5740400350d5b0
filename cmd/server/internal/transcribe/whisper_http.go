package transcribe

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
	"time"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// defaultTranscribeTimeout bounds a single transcription call. Transcription
// time is roughly proportional to audio duration, so this has to accommodate
// recordings up to the configured upload ceiling.
const defaultTranscribeTimeout = 10 * time.Minute

// WhisperHTTP implements Transcriber against a whisper-compatible HTTP
// service (for example the go-whisper container) using multipart/form-data
// requests to /api/whisper/transcribe.
type WhisperHTTP struct {
	apiURL     string
	model      string
	httpClient *http.Client
}

// NewWhisperHTTP creates a client for the whisper service at apiURL.
// model is the default model applied when a call passes no override.
func NewWhisperHTTP(apiURL, model string) *WhisperHTTP {
	if model == "" {
		model = "ggml-base"
	}
	return &WhisperHTTP{
		apiURL: apiURL,
		model:  model,
		httpClient: &http.Client{
			Timeout: defaultTranscribeTimeout,
		},
	}
}

// Transcribe uploads the audio file and parses the JSON transcription.
//
// Failure classification:
//   - connection errors and 5xx responses -> ModelUnavailable (transient)
//   - 4xx responses -> DecodeError (the service rejected the audio, fatal)
//   - unparseable success body -> ModelUnavailable (service misbehaving)
func (w *WhisperHTTP) Transcribe(ctx context.Context, audioPath string, opts *Options) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.KindDecodeError, "transcribe",
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

	model := w.model
	if opts != nil && opts.Model != "" {
		model = opts.Model
	}
	if err := writer.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return nil, fmt.Errorf("failed to write response_format field: %w", err)
	}
	if opts != nil && opts.Language != "" {
		if err := writer.WriteField("language", opts.Language); err != nil {
			return nil, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if opts != nil && opts.Prompt != "" {
		if err := writer.WriteField("prompt", opts.Prompt); err != nil {
			return nil, fmt.Errorf("failed to write prompt field: %w", err)
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

	endpoint := fmt.Sprintf("%s/api/whisper/transcribe", w.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pipeline.NewStageError(pipeline.KindModelUnavailable, "transcribe",
			"whisper service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return nil, pipeline.NewStageError(pipeline.KindModelUnavailable, "transcribe",
				fmt.Sprintf("whisper API returned status %d: %s", resp.StatusCode, respBody), nil)
		}
		return nil, pipeline.NewStageError(pipeline.KindDecodeError, "transcribe",
			fmt.Sprintf("whisper API rejected audio with status %d: %s", resp.StatusCode, respBody), nil)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pipeline.NewStageError(pipeline.KindModelUnavailable, "transcribe",
			"failed to parse whisper JSON response", err)
	}

	return &result, nil
}

// HealthCheck probes the service model endpoint.
func (w *WhisperHTTP) HealthCheck(ctx context.Context) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/whisper/model", w.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
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
func (w *WhisperHTTP) Name() string {
	return "whisper-http"
}
