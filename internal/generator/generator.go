// Package generator holds the answer generator port and the prompt used to
// ground answers in retrieved context. Backends live in subpackages.
package generator

import (
	"fmt"

	"ragqa/internal/domain"
)

// Generator turns a prompt into answer text.
type Generator = domain.AnswerGenerator

const promptTemplate = `You are a customer support assistant. Answer the question using only the context below.
If the context does not contain the answer, say that you could not find it in the uploaded documents.

Context:
%s

Question: %s

Answer:`

// BuildPrompt combines assembled context and the user's question.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}
