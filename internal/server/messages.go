package server

// Client-to-server control message types carried as websocket text frames.
const (
	msgStartStream = "startStream"
	msgEndStream   = "endStream"
)

// Server-to-client message types.
const (
	msgStreamReady      = "streamReady"
	msgStreamError      = "streamError"
	msgStreamEnded      = "streamEnded"
	msgTranscriptResult = "transcriptResult"
	msgServiceError     = "serviceError"
)

// clientMessage is the envelope for every control frame a client sends.
// Fields beyond Type are only meaningful for startStream.
type clientMessage struct {
	Type       string   `json:"type"`
	Providers  []string `json:"providers,omitempty"`
	SampleRate int      `json:"sampleRate,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	Channels   int      `json:"channels,omitempty"`
	Language   string   `json:"language,omitempty"`
}

// streamReadyMessage acknowledges a startStream with the providers that
// actually established a session.
type streamReadyMessage struct {
	Type      string   `json:"type"`
	Providers []string `json:"providers"`
}

// streamErrorMessage reports a stream-level failure. The stream is not open
// after this message.
type streamErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// streamEndedMessage acknowledges an endStream.
type streamEndedMessage struct {
	Type string `json:"type"`
}

// transcriptResultMessage delivers one normalized transcript from one
// provider.
type transcriptResultMessage struct {
	Type       string `json:"type"`
	Provider   string `json:"provider"`
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
	LatencyMs  int64  `json:"latencyMs"`
}

// serviceErrorMessage reports a provider-scoped failure. Other providers on
// the same stream are unaffected.
type serviceErrorMessage struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// transcribeResponse is the body of a successful POST /api/transcribe.
type transcribeResponse struct {
	Results map[string]batchEntry `json:"results"`
	File    fileInfo              `json:"file"`
}

// batchEntry is one provider's outcome in a transcribeResponse. Confidence
// and Error are null when the provider did not report them.
type batchEntry struct {
	Text             string         `json:"text"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Confidence       *float64       `json:"confidence"`
	Error            *string        `json:"error"`
	Details          map[string]any `json:"details,omitempty"`
}

// fileInfo describes the uploaded audio.
type fileInfo struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// errorResponse is the JSON body for 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}
