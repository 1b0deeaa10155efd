package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("[Document 1: policy.txt]\nRefunds within 30 days.", "How long do refunds take?")
	assert.Contains(t, p, "using only the context")
	assert.Contains(t, p, "Context:\n[Document 1: policy.txt]\nRefunds within 30 days.\n")
	assert.Contains(t, p, "Question: How long do refunds take?")
}
