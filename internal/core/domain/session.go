package domain

import "time"

// Document describes one uploaded file after ingestion into a session index.
type Document struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Chunks    int       `json:"chunks"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentChunk is one indexed slice of an uploaded document. Seq is the
// insertion position within the owning session index and stays stable for
// the lifetime of the session; retrieval tie-breaks depend on it.
type DocumentChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Seq        int    `json:"seq"`
	Text       string `json:"text"`
}

type ConversationTurn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
