package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/triscribe/triscribe/internal/observe"
	"github.com/triscribe/triscribe/internal/relay"
)

// maxUploadBytes bounds the multipart body of POST /api/transcribe.
const maxUploadBytes = 64 << 20

// handleTranscribe fans an uploaded audio file out to every requested
// provider concurrently and returns one result entry per provider that has a
// configured credential. A single provider's failure lands in its own entry;
// only structural problems with the request itself produce a 4xx.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	ctx, span := observe.StartSpan(r.Context(), "batch.transcribe")
	defer span.End()
	log := observe.Logger(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "malformed multipart request: "+err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "missing audio file field")
		return
	}
	defer file.Close()

	names := splitProviders(r.FormValue("providers"))
	if len(names) == 0 {
		writeError(ctx, w, http.StatusBadRequest, "no providers selected")
		return
	}
	if !s.anyConfigured(names) {
		writeError(ctx, w, http.StatusBadRequest, "none of the selected providers is configured")
		return
	}

	audio, err := stageUpload(log, file)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	size := int64(len(audio))
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	outcomes := relay.TranscribeAll(ctx, s.providers, names, audio, mimeType, s.metrics)

	results := make(map[string]batchEntry, len(outcomes))
	for name, outcome := range outcomes {
		entry := batchEntry{
			Text:             outcome.Result.Text,
			ProcessingTimeMs: outcome.Result.ProcessingTime.Milliseconds(),
			Confidence:       outcome.Result.Confidence,
			Details:          outcome.Result.Details,
		}
		if outcome.Err != nil {
			msg := outcome.Err.Error()
			entry.Error = &msg
			log.Warn("batch transcription failed", "provider", name, "err", outcome.Err)
		}
		results[name] = entry
	}

	writeJSON(ctx, w, http.StatusOK, transcribeResponse{
		Results: results,
		File:    fileInfo{Size: size, MimeType: mimeType},
	})
}

// stageUpload spools the multipart part to a temp file and reads the audio
// back from it, so the bytes fanned out are exactly what reached disk. The
// file is removed before the handler responds; removal failures are logged
// and swallowed because the staged bytes are already in hand. When the temp
// file cannot even be created the upload is read directly from the part.
func stageUpload(log *slog.Logger, src io.Reader) ([]byte, error) {
	tmp, err := os.CreateTemp("", "triscribe-upload-*")
	if err != nil {
		log.Warn("create staged upload", "err", err)
		return io.ReadAll(src)
	}
	name := tmp.Name()
	defer func() {
		if err := os.Remove(name); err != nil {
			log.Warn("remove staged upload", "path", name, "err", err)
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close staged upload: %w", err)
	}
	return os.ReadFile(name)
}

// anyConfigured reports whether at least one requested name has a provider
// instance behind it.
func (s *Server) anyConfigured(names []string) bool {
	for _, name := range names {
		if _, ok := s.providers[name]; ok {
			return true
		}
	}
	return false
}

// splitProviders parses the comma-separated providers form field.
func splitProviders(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
