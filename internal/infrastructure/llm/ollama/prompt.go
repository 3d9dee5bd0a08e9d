package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/adaptive-rag/internal/core/domain"
)

func buildRouterPrompt(question string, history []domain.ConversationTurn) string {
	return fmt.Sprintf(`You route user questions to a data source.
Return strict JSON: {"datasource": "vectorstore" | "web_search" | "generate"}.

Pick "vectorstore" for questions about the content of uploaded documents.
Pick "web_search" only for real-world facts, current events, or information
clearly outside the uploaded documents and the conversation.
Pick "generate" for greetings, questions about this conversation itself, and
general creative or logic tasks that need no external context.

Conversation so far:
%s

Question:
%s
`, formatHistory(history), question)
}

func buildExpandPrompt(question string, variants int) string {
	return fmt.Sprintf(`You optimize retrieval queries.
Return strict JSON: {"questions": [%d alternative phrasings of the question]}.
Each phrasing must keep the original intent but vary wording: surface key
entities, restate the question as a statement that could appear in a
document, or split a compound question.

Question: %s
`, variants, question)
}

func buildRelevancePrompt(question, document string) string {
	return fmt.Sprintf(`You grade retrieved documents.
Return strict JSON: {"binary_score": "yes" | "no"}.
Grade "yes" if the document carries any fact or context useful for answering
the question. Grade "no" only when it is completely off-topic.

Document:
%s

Question: %s
`, document, question)
}

func buildGroundingPrompt(answer string, facts []string) string {
	return fmt.Sprintf(`You are a fact-checker.
Return strict JSON: {"binary_score": "yes" | "no"}.
Grade "yes" if the answer's main claims appear in or follow from the facts.
Grade "no" only if the answer contradicts the facts or invents information
not present in them. Ignore style, judge factual grounding only.

Facts:
%s

Answer:
%s
`, strings.Join(facts, "\n\n"), answer)
}

func buildAnswerPrompt(question string, history []domain.ConversationTurn, contextDocs []string) string {
	contextBlock := "No external context provided."
	if len(contextDocs) > 0 {
		var b strings.Builder
		for idx, doc := range contextDocs {
			b.WriteString(fmt.Sprintf("[%d] %s\n\n", idx+1, doc))
		}
		contextBlock = strings.TrimSpace(b.String())
	}

	return fmt.Sprintf(`Answer the user's question, preferring the context below.
If the context holds the answer, use it and cite its details.
If the context is empty or unrelated, answer from your own knowledge and
keep a concise, professional tone.

Conversation so far:
%s

Context:
%s

Question: %s
`, formatHistory(history), contextBlock, question)
}

func formatHistory(history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return "(empty)"
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, text))
	}
	if len(lines) == 0 {
		return "(empty)"
	}
	return strings.Join(lines, "\n")
}
