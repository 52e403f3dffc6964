package domain

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies the kind of a multimodal content part.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// Part is a single multimodal content element. Text parts carry Text;
// image parts carry an HTTPS or data URL in ImageURL.
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// Message represents a chat message. When Parts is non-empty the message is
// multimodal and Content is ignored by adapters; otherwise Content is the
// plain-text body. Messages are value objects: adapters must never mutate
// them, and the slice order given by the caller is the order sent to the
// vendor.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`

	// Tool calling fields.
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // role=assistant requesting tools
	ToolCallID string     `json:"tool_call_id,omitempty"` // role=tool, links to the call answered
	Name       string     `json:"name,omitempty"`         // role=tool, tool name
}

// HasParts reports whether the message carries multimodal parts.
func (m Message) HasParts() bool {
	return len(m.Parts) > 0
}

// Text returns the textual content of the message, flattening text parts
// when the message is multimodal.
func (m Message) Text() string {
	if !m.HasParts() {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// SystemMessage builds a system-role text message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role text message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role text message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage builds a tool-role message answering a tool call.
func ToolResultMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Name: name, Content: content}
}
