package fulltext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/autotrans-cli/pkg/openai"
)

const (
	translateSystemPrompt = "歯科学の学術論文を翻訳する専門家です。自然で読みやすい日本語に翻訳してください。"
	translateUserPrompt   = "以下の学術論文の%sを日本語に翻訳してください。\n専門用語は適切な日本語訳を使用してください。\n\n%s"

	titleLabel = "タイトル"

	minTranslateChars = 10
	maxTranslateChars = 6000
	maxEmbedChars     = 8000
)

// ErrTooShort is returned for text too short to be worth translating.
var ErrTooShort = eris.New("fulltext: text too short to translate")

// translate renders text in Japanese. label names the part of the paper in
// the prompt, e.g. the section's Japanese heading.
func (ix *Indexer) translate(ctx context.Context, text, label string) (string, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minTranslateChars {
		return "", ErrTooShort
	}
	res, err := ix.ai.Chat(ctx, openai.ChatRequest{
		Model:       ix.cfg.TranslationModel,
		System:      translateSystemPrompt,
		User:        fmt.Sprintf(translateUserPrompt, label, truncate(text, maxTranslateChars)),
		Temperature: 0.3,
	})
	if err != nil {
		return "", eris.Wrapf(err, "fulltext: translate %s", label)
	}
	ix.charge(res.Model, res.InputTokens, res.OutputTokens)
	if res.Text == "" {
		return "", eris.Errorf("fulltext: empty translation of %s", label)
	}
	return res.Text, nil
}
