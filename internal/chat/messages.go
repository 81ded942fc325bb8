package chat

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"trustmed/internal/kb"
)

// Message authors.
const (
	BannerAuthor    = "banner"
	AssistantAuthor = "TrustMed AI"
)

// Websocket event types.
const (
	TypeMessage     = "message"
	TypeUpdate      = "update"
	TypeUserMessage = "user_message"
	TypeStop        = "stop"
	TypeEnd         = "end"
)

// SessionEndedText is sent when a conversation is stopped.
const SessionEndedText = "Session ended. Thank you for using TrustMed AI!"

// DefaultWelcome is shown when no welcome file is configured.
const DefaultWelcome = `# Welcome to TrustMed AI! 🏥

Ask about Type II Diabetes, Heart Disease, medications, or symptoms to see the
knowledge base retrieve citations from both authoritative and forum sources.`

const unavailableText = "⚠️ The knowledge base is temporarily unavailable. Please try again in a moment."

// Element is a named attachment rendered next to a message, used for
// source snippets.
type Element struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Display string `json:"display"`
}

// Message is one event on the chat websocket.
type Message struct {
	Type     string    `json:"type"`
	ID       string    `json:"id,omitempty"`
	Author   string    `json:"author,omitempty"`
	Content  string    `json:"content"`
	Elements []Element `json:"elements,omitempty"`
}

// SourceElements turns citations into inline snippet elements.
func SourceElements(citations []kb.Citation) []Element {
	if len(citations) == 0 {
		return nil
	}

	out := make([]Element, 0, len(citations))
	for _, c := range citations {
		out = append(out, Element{Name: c.Name(), Content: c.Snippet, Display: "inline"})
	}

	return out
}

// ErrorText maps an answering failure onto the text shown to the user.
func ErrorText(err error) string {
	var missing *kb.MissingConfigError
	if errors.As(err, &missing) {
		return "⚠️ Missing configuration: " + strings.Join(missing.Names, ", ") +
			". Please export these environment variables and restart the server."
	}

	if errors.Is(err, kb.ErrUnavailable) {
		return unavailableText
	}

	var bedrockErr *kb.BedrockError
	if errors.As(err, &bedrockErr) {
		return fmt.Sprintf("⚠️ Bedrock error: %v", bedrockErr.Err)
	}

	return fmt.Sprintf("⚠️ Unexpected error: %v", err)
}

// LoadWelcome reads the welcome markdown, falling back to DefaultWelcome.
func LoadWelcome(path string) string {
	if path == "" {
		return DefaultWelcome
	}

	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) == "" {
		return DefaultWelcome
	}

	return string(data)
}
