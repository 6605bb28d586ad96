// Package formgen asks a language model to fill the call form from a merged
// conversation. The output is free text; parsing it is the form package's job.
package formgen

import (
	"context"
	"fmt"
	"strings"

	"call-review-service/internal/schema"
	"call-review-service/internal/service/transcript"
)

// Generator produces form text from a conversation.
type Generator interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Generate returns text embedding a JSON object that maps each schema
	// field key to {"answer", "confidence_scores"}.
	Generate(ctx context.Context, conv transcript.Conversation, s *schema.Schema) (string, error)
}

const systemPrompt = `Tu remplis un formulaire à partir de la transcription d'un appel téléphonique entre un client (Caller) et un conseiller (Receiver).
Chaque mot de la transcription est suivi de son score de confiance entre parenthèses, par exemple "bonjour(0.93)".
Réponds uniquement avec un objet JSON. Pour chaque champ demandé, donne un objet {"answer": "...", "confidence_scores": [...]}.
"answer" est la valeur du champ telle que dite pendant l'appel, ou "" si elle n'a pas été mentionnée.
"confidence_scores" liste les scores de confiance des mots de la transcription dont la réponse est tirée, dans l'ordre; la liste est vide si la réponse est vide.`

// BuildPrompt returns the system and user messages for a conversation.
func BuildPrompt(conv transcript.Conversation, s *schema.Schema) (system, user string) {
	var b strings.Builder
	b.WriteString("Champs du formulaire:\n")
	for _, f := range s.Fields {
		b.WriteString("- ")
		b.WriteString(f.Key)
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteByte('\n')
	}
	b.WriteString("\nTranscription:\n")
	b.WriteString(conv.Annotated())
	return systemPrompt, b.String()
}
