package rag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/camilo-ai/camilo/rag/types"
)

// SectionDelimiter separates the structural blocks of a prompt.
const SectionDelimiter = "&&&"

// DateLayout is the format used for the current date in prompts.
const DateLayout = "January 2, 2006"

const (
	defaultPersonaName = "Shubh"
	userLabel          = "User"
	unknownDate        = "Date unknown"
)

var urlDateRe = regexp.MustCompile(`/(\d{4})/(\d{2})/`)

// PromptInput is everything a prompt is rendered from.
type PromptInput struct {
	Persona         string
	History         []Message
	Segments        []*types.Segment
	Questions       []*types.QuestionAnswer
	Conversations   []*types.ConversationExample
	CurrentQuestion string
	CurrentDate     string
}

// section renders one optional block of the prompt. ok is false when the
// block has nothing to show and must be left out entirely.
type section func(in PromptInput) (body string, ok bool)

// PromptAssembler renders prompts from a fixed, ordered list of sections.
type PromptAssembler struct {
	personaName string
	sections    []section
}

func NewPromptAssembler(personaName string) *PromptAssembler {
	if personaName == "" {
		personaName = defaultPersonaName
	}
	a := &PromptAssembler{personaName: personaName}
	a.sections = []section{
		dateSection,
		contextSection,
		questionsSection,
		a.historySection,
		a.conversationsSection,
		currentQuestionSection,
	}
	return a
}

// Assemble renders the prompt. Persona instructions always come first.
func (a *PromptAssembler) Assemble(in PromptInput) string {
	var b strings.Builder
	b.WriteString(in.Persona)
	for _, s := range a.sections {
		body, ok := s(in)
		if !ok {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(SectionDelimiter)
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}

// DateFromURL extracts "Month YYYY" from a /YYYY/MM/ path segment.
func DateFromURL(url string) string {
	m := urlDateRe.FindStringSubmatch(url)
	if m == nil {
		return unknownDate
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return unknownDate
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006")
}

func dateSection(in PromptInput) (string, bool) {
	return "Today's date: " + in.CurrentDate, true
}

func contextSection(in PromptInput) (string, bool) {
	if len(in.Segments) == 0 {
		return "", false
	}
	refs := make([]string, 0, len(in.Segments))
	for _, s := range in.Segments {
		refs = append(refs, fmt.Sprintf("[Reference %d - %s]:\n%s", s.ID, DateFromURL(s.URL), s.Content))
	}
	return "Context from the blog:\n" + strings.Join(refs, "\n\n"), true
}

func questionsSection(in PromptInput) (string, bool) {
	if len(in.Questions) == 0 {
		return "", false
	}
	qs := make([]string, 0, len(in.Questions))
	for i, q := range in.Questions {
		qs = append(qs, fmt.Sprintf("[Similar Q&A %d]:\nQuestion: %s\nAnswer: %s", i+1, q.Question, q.Answer))
	}
	return "Similar Questions and Answers. If a question is very close to the current question, replicate the answer very closely as relevant:\n" +
		strings.Join(qs, "\n\n"), true
}

func (a *PromptAssembler) historySection(in PromptInput) (string, bool) {
	if len(in.History) == 0 {
		return "", false
	}
	return "Here is the conversation history so far:\n" + a.FormatTranscript(in.History), true
}

func (a *PromptAssembler) conversationsSection(in PromptInput) (string, bool) {
	if len(in.Conversations) == 0 {
		return "", false
	}
	convs := make([]string, 0, len(in.Conversations))
	for i, c := range in.Conversations {
		msgs := make([]string, 0, len(c.Messages))
		for _, m := range c.Messages {
			msgs = append(msgs, fmt.Sprintf("    %s:\n    \"%s\"", a.speaker(m), m.Content))
		}
		convs = append(convs, fmt.Sprintf("[Similar Conversation %d]:\n%s", i+1, strings.Join(msgs, "\n\n")))
	}
	return fmt.Sprintf("We found a similar conversation that the real %s has had that might be relevant. "+
		"If the content is similar follow this conversation history very closely. "+
		"Especially focus on how %s asks the user questions to clarify the situation before making his response:\n",
		a.personaName, a.personaName) + strings.Join(convs, "\n\n"), true
}

func currentQuestionSection(in PromptInput) (string, bool) {
	return "Current question that you are answering: \"" + in.CurrentQuestion + "\"", true
}

// FormatTranscript renders messages as speaker-labelled lines.
func (a *PromptAssembler) FormatTranscript(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, a.speaker(m)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func (a *PromptAssembler) speaker(m Message) string {
	if m.IsFromAssistant {
		return a.personaName
	}
	return userLabel
}

// SplitTranscript separates the final user message from the history before
// it. When the final message comes from the assistant the whole transcript
// is returned as history, the current question is empty and an
// inconsistent-input error is reported.
func SplitTranscript(transcript []Message) (history []Message, current string, err error) {
	if len(transcript) == 0 {
		return []Message{}, "", newTurnError(KindInconsistentInput, "empty transcript")
	}
	last := transcript[len(transcript)-1]
	if last.IsFromAssistant {
		return transcript, "", newTurnError(KindInconsistentInput, "last message is from the assistant")
	}
	return transcript[:len(transcript)-1], last.Content, nil
}
