package queue

import "encoding/json"

// CurrentVersion is the payload version written by Send.
const CurrentVersion = 1

// Message asks for the preview of one resume to be rendered.
type Message struct {
	ResumeID     string `json:"resumeId"`
	OwnerID      string `json:"ownerId"`
	TemplateType string `json:"templateType"`
	Color        string `json:"color,omitempty"`
	AuthToken    string `json:"authToken,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	EnqueuedAt   string `json:"enqueuedAt"`
	Version      int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
