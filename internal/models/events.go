package models

// TranslationCompleted is published after a successful correction and translation.
type TranslationCompleted struct {
	EventType     string `json:"eventType"`
	RequestID     string `json:"requestId"`
	SourceLang    string `json:"sourceLang"`
	TargetLang    string `json:"targetLang"`
	Text          string `json:"text"`
	CorrectedText string `json:"correctedText"`
	Output        string `json:"output"`
	LatencyMs     int64  `json:"latencyMs"`
	Timestamp     int64  `json:"timestamp"`
}

// TranslationFailed is published when a request ends with a 429 or 500.
type TranslationFailed struct {
	EventType  string `json:"eventType"`
	RequestID  string `json:"requestId"`
	SourceLang string `json:"sourceLang"`
	TargetLang string `json:"targetLang"`
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Timestamp  int64  `json:"timestamp"`
}

const (
	EventTranslationCompleted = "clinical.translation.completed"
	EventTranslationFailed    = "clinical.translation.failed"
)
