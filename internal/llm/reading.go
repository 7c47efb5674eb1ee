// Package llm builds tarot reading prompts and asks a language model to interpret them.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Alias1177/MilkyTarot/internal/cards"
)

// MaxLength is the target reading length in characters.
const MaxLength = 1200

// Completer generates text for a prompt.
type Completer interface {
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// Reader produces three-card readings.
type Reader struct {
	llm      Completer
	meanings cards.Meanings
}

// NewReader creates a Reader. meanings may be nil.
func NewReader(llm Completer, meanings cards.Meanings) *Reader {
	return &Reader{llm: llm, meanings: meanings}
}

// ThreeCards interprets a three-card spread for question.
func (r *Reader) ThreeCards(ctx context.Context, spread []cards.Card, question string) (string, error) {
	prompt := WithMeanings(ThreeCardsPrompt(spread, question), spread, r.meanings)
	text, err := r.llm.GenerateCompletion(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("three cards reading: %w", err)
	}
	return text, nil
}

// ThreeCardsPrompt builds the base instruction for a three-card spread.
func ThreeCardsPrompt(spread []cards.Card, question string) string {
	titles := make([]string, 0, len(spread))
	for _, c := range spread {
		titles = append(titles, c.Title)
	}

	question = strings.TrimSpace(question)
	clause := "Вопрос клиента не указан. "
	if question != "" {
		clause = fmt.Sprintf("Вопрос клиента: %s. ", question)
	}

	var b strings.Builder
	b.WriteString("Ты — таролог, делающий ясные и земные объяснения. ")
	b.WriteString("Используй только обычный связный текст без Markdown, списков, эмодзи или символов форматирования. ")
	b.WriteString("Ответ должен быть разделён на несколько абзацев с завершёнными мыслями. ")
	b.WriteString(`Сделай трактовку расклада "Три карты". `)
	fmt.Fprintf(&b, "Карты: %s. ", strings.Join(titles, ", "))
	b.WriteString(clause)
	b.WriteString("Объясни общую энергию расклада, коротко опиши роль каждой карты и заверши практическим советом. ")
	fmt.Fprintf(&b, "Уложись примерно в %d символов и избегай эзотерических терминов, которые могут быть непонятны новичку.", MaxLength)
	return b.String()
}

// WithMeanings prepends the stored meanings of the drawn cards to prompt.
// Cards without a meaning are skipped; with none at all prompt is returned as is.
func WithMeanings(prompt string, spread []cards.Card, meanings cards.Meanings) string {
	var snippets []string
	for _, c := range spread {
		if m, ok := meanings[strings.TrimSpace(c.Title)]; ok && m != "" {
			snippets = append(snippets, c.Title+": "+m)
		}
	}
	if len(snippets) == 0 {
		return prompt
	}

	return "Ниже приведены дополнительные трактовки карт, которые выпали в раскладе. " +
		"Не ссылайся на этот контекст напрямую и не упоминай, что он был отдельно передан, " +
		"просто используй его смысл внутри живой, человечной трактовки.\n\n" +
		"Дополнительные трактовки только для выпавших в раскладе карт:\n" +
		strings.Join(snippets, "\n\n") +
		"\n\n---\n\n" + prompt
}
