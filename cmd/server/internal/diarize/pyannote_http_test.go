package diarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

func writeTestAudio(t *testing.T) string {
	t.Helper()
	audioPath := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF....WAVE"), 0644); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	return audioPath
}

func TestPyannoteHTTPDiarize(t *testing.T) {
	t.Run("two speaker result", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/diarize" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"turns": []map[string]interface{}{
					{"speaker": "SPEAKER_00", "start": 0.0, "end": 18.5},
					{"speaker": "SPEAKER_01", "start": 19.5, "end": 40.0},
				},
				"speakers": 2,
				"duration": 40.0,
			})
		}))
		defer server.Close()

		impl := NewPyannoteHTTP(server.URL)
		result, err := impl.Diarize(context.Background(), writeTestAudio(t), nil)
		if err != nil {
			t.Fatalf("Diarize() error = %v", err)
		}

		if len(result.Turns) != 2 {
			t.Fatalf("len(Turns) = %d, want 2", len(result.Turns))
		}
		if result.Turns[0].Speaker != "SPEAKER_00" {
			t.Errorf("Turns[0].Speaker = %q, want %q", result.Turns[0].Speaker, "SPEAKER_00")
		}
		if result.Speakers != 2 {
			t.Errorf("Speakers = %d, want 2", result.Speakers)
		}
	})

	t.Run("single speaker is one full-length turn", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"turns": []map[string]interface{}{
					{"speaker": "SPEAKER_00", "start": 0.0, "end": 61.2},
				},
				"speakers": 1,
				"duration": 61.2,
			})
		}))
		defer server.Close()

		impl := NewPyannoteHTTP(server.URL)
		result, err := impl.Diarize(context.Background(), writeTestAudio(t), nil)
		if err != nil {
			t.Fatalf("Diarize() error = %v", err)
		}
		if len(result.Turns) != 1 {
			t.Fatalf("len(Turns) = %d, want 1", len(result.Turns))
		}
	})

	t.Run("5xx maps to ModelUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		impl := NewPyannoteHTTP(server.URL)
		_, err := impl.Diarize(context.Background(), writeTestAudio(t), nil)

		var se *pipeline.StageError
		if !errors.As(err, &se) {
			t.Fatalf("expected StageError, got %v", err)
		}
		if se.Kind != pipeline.KindModelUnavailable {
			t.Errorf("Kind = %q, want %q", se.Kind, pipeline.KindModelUnavailable)
		}
	})

	t.Run("4xx maps to DecodeError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		impl := NewPyannoteHTTP(server.URL)
		_, err := impl.Diarize(context.Background(), writeTestAudio(t), nil)

		var se *pipeline.StageError
		if !errors.As(err, &se) {
			t.Fatalf("expected StageError, got %v", err)
		}
		if se.Kind != pipeline.KindDecodeError {
			t.Errorf("Kind = %q, want %q", se.Kind, pipeline.KindDecodeError)
		}
	})

	t.Run("speaker bounds forwarded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.FormValue("min_speakers"); got != "2" {
				t.Errorf("min_speakers = %q, want %q", got, "2")
			}
			if got := r.FormValue("max_speakers"); got != "6" {
				t.Errorf("max_speakers = %q, want %q", got, "6")
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"turns": []interface{}{}})
		}))
		defer server.Close()

		impl := NewPyannoteHTTP(server.URL)
		if _, err := impl.Diarize(context.Background(), writeTestAudio(t), &Options{MinSpeakers: 2, MaxSpeakers: 6}); err != nil {
			t.Fatalf("Diarize() error = %v", err)
		}
	})
}
