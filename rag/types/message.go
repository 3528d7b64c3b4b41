package types

// Message is a single transcript entry.
type Message struct {
	Content         string `json:"content"`
	IsFromAssistant bool   `json:"isAI"`
}

// UserMessages returns the messages not authored by the assistant, in order.
func UserMessages(transcript []Message) []Message {
	out := []Message{}
	for _, m := range transcript {
		if !m.IsFromAssistant {
			out = append(out, m)
		}
	}
	return out
}
