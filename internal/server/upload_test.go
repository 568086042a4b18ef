package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/triscribe/triscribe/pkg/stt"
	"github.com/triscribe/triscribe/pkg/stt/mock"
)

// multipartUpload builds a multipart body with an audio file part and a
// providers form field.
func multipartUpload(t *testing.T, audio []byte, mimeType, providers string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if audio != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="audio"; filename="clip.wav"`)
		hdr.Set("Content-Type", mimeType)
		part, err := w.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(audio); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if providers != "" {
		if err := w.WriteField("providers", providers); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func postTranscribe(t *testing.T, url string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/api/transcribe", contentType, body)
	if err != nil {
		t.Fatalf("POST /api/transcribe: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTranscribe_AllProvidersSucceed(t *testing.T) {
	conf := 0.93
	providers := map[string]stt.Provider{
		"assemblyai": &mock.Provider{
			ProviderName: "assemblyai",
			BatchResult: stt.BatchResult{
				Text:           "hello from assemblyai",
				ProcessingTime: 1500 * time.Millisecond,
				Confidence:     &conf,
			},
		},
		"deepgram": &mock.Provider{
			ProviderName: "deepgram",
			BatchResult: stt.BatchResult{
				Text:           "hello from deepgram",
				ProcessingTime: 800 * time.Millisecond,
				Details:        map[string]any{"model": "nova-2"},
			},
		},
	}
	srv := newTestServer(t, providers)

	audio := []byte("RIFF....fake wav bytes")
	body, ct := multipartUpload(t, audio, "audio/wav", "assemblyai,deepgram")
	resp := postTranscribe(t, srv.URL, body, ct)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(got.Results) != 2 {
		t.Fatalf("results: want 2 entries, got %d", len(got.Results))
	}
	aai := got.Results["assemblyai"]
	if aai.Text != "hello from assemblyai" {
		t.Errorf("assemblyai text = %q", aai.Text)
	}
	if aai.ProcessingTimeMs != 1500 {
		t.Errorf("assemblyai processingTimeMs = %d, want 1500", aai.ProcessingTimeMs)
	}
	if aai.Confidence == nil || *aai.Confidence != 0.93 {
		t.Errorf("assemblyai confidence = %v, want 0.93", aai.Confidence)
	}
	if aai.Error != nil {
		t.Errorf("assemblyai error = %v, want null", *aai.Error)
	}

	dg := got.Results["deepgram"]
	if dg.Confidence != nil {
		t.Errorf("deepgram confidence = %v, want null", *dg.Confidence)
	}
	if dg.Details["model"] != "nova-2" {
		t.Errorf("deepgram details = %v", dg.Details)
	}

	if got.File.Size != int64(len(audio)) {
		t.Errorf("file size = %d, want %d", got.File.Size, len(audio))
	}
	if got.File.MimeType != "audio/wav" {
		t.Errorf("file mimeType = %q, want audio/wav", got.File.MimeType)
	}
}

func TestTranscribe_StagedUploadRoundTrip(t *testing.T) {
	// Pin the staging directory so the test can observe the temp file
	// lifecycle: the bytes must survive the disk round trip unchanged and the
	// file must be gone once the response is out.
	stagingDir := t.TempDir()
	t.Setenv("TMPDIR", stagingDir)

	p := &mock.Provider{ProviderName: "deepgram", BatchResult: stt.BatchResult{Text: "ok"}}
	srv := newTestServer(t, map[string]stt.Provider{"deepgram": p})

	audio := []byte("RIFF....staged wav bytes")
	body, ct := multipartUpload(t, audio, "audio/wav", "deepgram")
	resp := postTranscribe(t, srv.URL, body, ct)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.File.Size != int64(len(audio)) {
		t.Errorf("file size = %d, want %d", got.File.Size, len(audio))
	}

	if n := len(p.TranscribeBatchCalls); n != 1 {
		t.Fatalf("TranscribeBatch calls = %d, want 1", n)
	}
	if !bytes.Equal(p.TranscribeBatchCalls[0].Audio, audio) {
		t.Errorf("provider audio = %q, want %q", p.TranscribeBatchCalls[0].Audio, audio)
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir not cleaned up: %d entries left", len(entries))
	}
}

func TestTranscribe_ProviderFailureIsolated(t *testing.T) {
	providers := map[string]stt.Provider{
		"assemblyai": &mock.Provider{ProviderName: "assemblyai", BatchErr: errors.New("upstream 500")},
		"deepgram":   &mock.Provider{ProviderName: "deepgram", BatchResult: stt.BatchResult{Text: "still works"}},
	}
	srv := newTestServer(t, providers)

	body, ct := multipartUpload(t, []byte("pcm"), "audio/wav", "assemblyai,deepgram")
	resp := postTranscribe(t, srv.URL, body, ct)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	aai := got.Results["assemblyai"]
	if aai.Error == nil || *aai.Error != "upstream 500" {
		t.Errorf("assemblyai error = %v, want upstream 500", aai.Error)
	}
	if dg := got.Results["deepgram"]; dg.Text != "still works" || dg.Error != nil {
		t.Errorf("deepgram entry = %+v", dg)
	}
}

func TestTranscribe_UnconfiguredProviderSkipped(t *testing.T) {
	providers := map[string]stt.Provider{
		"deepgram": &mock.Provider{ProviderName: "deepgram", BatchResult: stt.BatchResult{Text: "ok"}},
	}
	srv := newTestServer(t, providers)

	body, ct := multipartUpload(t, []byte("pcm"), "audio/wav", "deepgram,openai")
	resp := postTranscribe(t, srv.URL, body, ct)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := got.Results["openai"]; ok {
		t.Error("openai must be absent from results")
	}
	if len(got.Results) != 1 {
		t.Errorf("results: want 1 entry, got %d", len(got.Results))
	}
}

func TestTranscribe_NoProvidersSelected(t *testing.T) {
	srv := newTestServer(t, map[string]stt.Provider{
		"deepgram": &mock.Provider{ProviderName: "deepgram"},
	})

	body, ct := multipartUpload(t, []byte("pcm"), "audio/wav", "")
	resp := postTranscribe(t, srv.URL, body, ct)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTranscribe_NoConfiguredProvider(t *testing.T) {
	srv := newTestServer(t, map[string]stt.Provider{})

	body, ct := multipartUpload(t, []byte("pcm"), "audio/wav", "assemblyai,openai")
	resp := postTranscribe(t, srv.URL, body, ct)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTranscribe_MissingAudioFile(t *testing.T) {
	srv := newTestServer(t, map[string]stt.Provider{
		"deepgram": &mock.Provider{ProviderName: "deepgram"},
	})

	body, ct := multipartUpload(t, nil, "", "deepgram")
	resp := postTranscribe(t, srv.URL, body, ct)

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSplitProviders(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"assemblyai,deepgram,openai", 3},
		{" assemblyai , deepgram ", 2},
		{"", 0},
		{",,", 0},
	}
	for _, tc := range tests {
		if got := splitProviders(tc.raw); len(got) != tc.want {
			t.Errorf("splitProviders(%q) = %v, want %d names", tc.raw, got, tc.want)
		}
	}
}
