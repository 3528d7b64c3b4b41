package rag

import (
	"context"
	"fmt"

	"github.com/mudler/xlog"
)

const defaultOpener = "Start the conversation with a question about entrepreneurship or technology"

// Simulator plays either side of a practice conversation without retrieval.
// It is used to generate example conversations for the conversations index.
type Simulator struct {
	completer   Completer
	assembler   *PromptAssembler
	model       string
	personaName string
}

func NewSimulator(completer Completer, model, personaName string) *Simulator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if personaName == "" {
		personaName = defaultPersonaName
	}
	return &Simulator{
		completer:   completer,
		assembler:   NewPromptAssembler(personaName),
		model:       model,
		personaName: personaName,
	}
}

// Prompt renders the simulation prompt. asUser selects the person asking
// for advice, otherwise the life coach speaks.
func (s *Simulator) Prompt(transcript []Message, asUser bool) string {
	directive := lifeCoachPrompt
	if asUser {
		directive = simulatedUserPrompt
	}

	var history []Message
	var last string
	if len(transcript) > 0 {
		var err error
		history, last, err = SplitTranscript(transcript)
		if err != nil {
			xlog.Warn("Simulated transcript does not end with a user message", "error", err)
		}
	}
	if last == "" {
		last = defaultOpener
	}

	return fmt.Sprintf("%s\n\nChat History:\n%s\n\nLast Message: %s",
		personalize(directive, s.personaName), s.assembler.FormatTranscript(history), last)
}

// Next produces the next simulated message.
func (s *Simulator) Next(ctx context.Context, transcript []Message, asUser bool) (string, error) {
	reply, err := s.completer.Complete(ctx, s.Prompt(transcript, asUser), s.model)
	if err != nil {
		return "", newTurnError(KindCompletion, "simulating message: %w", err)
	}
	return reply, nil
}
