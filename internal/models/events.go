// Package models defines the data structures for review run events.
package models

// Event types carried in the eventType field and the Kafka header.
const (
	EventConversationMerged = "call.conversation.merged"
	EventFormValidated      = "call.form.validated"
)

// ConversationMerged is emitted once the two channels of a call are merged.
type ConversationMerged struct {
	EventType string      `json:"eventType"`
	RunID     string      `json:"runId"`
	CallID    string      `json:"callId,omitempty"`
	Timestamp int64       `json:"timestamp"`
	WordCount int         `json:"wordCount"`
	Turns     []TurnEvent `json:"turns"`
}

// TurnEvent is one turn of a merged conversation.
type TurnEvent struct {
	Speaker     string    `json:"speaker"`
	Text        string    `json:"text"`
	Confidences []float64 `json:"confidences"`
	StartMs     int64     `json:"startMs"`
	EndMs       int64     `json:"endMs"`
}

// FormValidated is emitted after a form has been checked. Evidence audio is
// not carried; consumers fetch it through the API by issue ID.
type FormValidated struct {
	EventType string            `json:"eventType"`
	RunID     string            `json:"runId"`
	CallID    string            `json:"callId,omitempty"`
	Timestamp int64             `json:"timestamp"`
	Answers   map[string]string `json:"answers"`
	Issues    []IssueEvent      `json:"issues"`
}

// IssueEvent summarises one validation issue.
type IssueEvent struct {
	ID            string `json:"id"`
	Field         string `json:"field"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
	EvidenceMatch string `json:"evidenceMatch"`
	HasEvidence   bool   `json:"hasEvidence"`
}
