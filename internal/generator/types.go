// Package generator talks to the briefing generation endpoint, the webhook
// that turns a pasted conversation into a structured briefing document.
package generator

import "encoding/json"

// GenerateRequest is the JSON body posted to {base}/generate-briefing.
type GenerateRequest struct {
	Conversation string `json:"conversation"`
	UserID       string `json:"user_id,omitempty"`
}

// generateResponse captures the optional envelope; when StructuredBriefing is
// absent the whole body is the document.
type generateResponse struct {
	StructuredBriefing json.RawMessage `json:"structured_briefing"`
}
