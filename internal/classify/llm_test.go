package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/autotrans-cli/internal/cost"
	"github.com/sells-group/autotrans-cli/internal/model"
	"github.com/sells-group/autotrans-cli/pkg/anthropic"
	"github.com/sells-group/autotrans-cli/pkg/anthropic/mocks"
)

const testModel = "claude-haiku-4-5-20251001"

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Model:   testModel,
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 1_000_000, OutputTokens: 0},
	}
}

func TestLLM_Classify(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		relevant  bool
		kind      model.Kind
		reason    string
		undecided bool
	}{
		{
			name:     "accepted",
			reply:    `{"relevant": true, "kind": "case", "headline": "移植症例", "summary": "要約", "reason": "case report"}`,
			relevant: true,
			kind:     model.KindCase,
		},
		{
			name:     "fenced json",
			reply:    "```json\n{\"relevant\": true, \"kind\": \"Research\", \"headline\": \"h\"}\n```",
			relevant: true,
			kind:     model.KindResearch,
		},
		{
			name:   "rejected with reason",
			reply:  `{"relevant": false, "reason": "kidney transplant"}`,
			reason: "kidney transplant",
		},
		{
			name:      "unknown kind",
			reply:     `{"relevant": true, "kind": "opinion"}`,
			reason:    "malformed llm response",
			undecided: true,
		},
		{
			name:      "missing relevant",
			reply:     `{"kind": "research"}`,
			reason:    "malformed llm response",
			undecided: true,
		},
		{
			name:      "not json",
			reply:     "I think this is relevant.",
			reason:    "malformed llm response",
			undecided: true,
		},
		{
			name:      "empty",
			reply:     "",
			reason:    "malformed llm response",
			undecided: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := mocks.NewMockClient(t)
			client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(tt.reply), nil).Once()

			l := NewLLM(client, LLMConfig{Model: testModel})
			res := l.Classify(context.Background(), Input{Title: "t", Language: model.LangJA})
			assert.Equal(t, tt.relevant, res.Relevant)
			if tt.relevant {
				assert.Equal(t, tt.kind, res.Kind)
			} else {
				assert.Equal(t, tt.reason, res.Reason)
			}
			assert.Equal(t, tt.undecided, res.Undecided)
		})
	}
}

func TestLLM_APIErrorFailsClosed(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()

	res := NewLLM(client, LLMConfig{Model: testModel}).Classify(context.Background(), Input{Title: "t", Language: model.LangEN})
	assert.False(t, res.Relevant)
	assert.True(t, res.Undecided)
	assert.Equal(t, "llm error", res.Reason)
}

func TestLLM_EmptyTitleSkipsCall(t *testing.T) {
	client := mocks.NewMockClient(t)
	res := NewLLM(client, LLMConfig{Model: testModel}).Classify(context.Background(), Input{Language: model.LangEN})
	assert.False(t, res.Relevant)
}

func TestLLM_RequestShape(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == testModel &&
			len(req.System) == 1 && req.System[0].Text == DefaultRubric && req.System[0].CacheControl != nil &&
			req.Temperature != nil && *req.Temperature == 0 &&
			strings.Contains(req.Messages[0].Content, "Target language: Japanese") &&
			strings.Contains(req.Messages[0].Content, "page body text")
	})).Return(textResponse(`{"relevant": false}`), nil).Once()

	body := &fakeBody{text: "page body text"}
	l := NewLLM(client, LLMConfig{Model: testModel}, WithBodyFetcher(body))
	l.Classify(context.Background(), Input{Title: "t", Summary: "snippet", URL: "https://a.example.com", Language: model.LangJA})
	assert.Equal(t, 1, body.calls)
}

func TestLLM_BodyFetchFailureUsesSnippet(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.HasSuffix(req.Messages[0].Content, "snippet")
	})).Return(textResponse(`{"relevant": false}`), nil).Once()

	l := NewLLM(client, LLMConfig{Model: testModel}, WithBodyFetcher(&fakeBody{err: errors.New("blocked")}))
	l.Classify(context.Background(), Input{Title: "t", Summary: "snippet", URL: "https://a.example.com", Language: model.LangEN})
}

func TestLLM_VideoSkipsBodyFetch(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"relevant": false}`), nil).Once()

	body := &fakeBody{text: "x"}
	l := NewLLM(client, LLMConfig{Model: testModel}, WithBodyFetcher(body))
	l.Classify(context.Background(), Input{Title: "t", URL: "https://www.youtube.com/watch?v=a", Source: model.SourceYouTubeRSS, Language: model.LangEN})
	assert.Zero(t, body.calls)
}

func TestLLM_ChargesBudget(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"relevant": false}`), nil).Twice()

	budget := cost.NewBudget(1.5)
	l := NewLLM(client, LLMConfig{Model: testModel}, WithCost(cost.NewCalculator(cost.DefaultRates()), budget))
	l.Classify(context.Background(), Input{Title: "t", Language: model.LangEN})
	assert.InDelta(t, 1.0, budget.Spent(), 1e-9)
	assert.False(t, budget.Exhausted())

	l.Classify(context.Background(), Input{Title: "t", Language: model.LangEN})
	assert.True(t, budget.Exhausted())
}

func TestLLM_ExhaustedBudgetSkipsCall(t *testing.T) {
	client := mocks.NewMockClient(t)

	budget := cost.NewBudget(1)
	require.ErrorIs(t, budget.Charge(5), cost.ErrBudgetExhausted)

	l := NewLLM(client, LLMConfig{Model: testModel}, WithCost(cost.NewCalculator(cost.DefaultRates()), budget))
	for range 3 {
		res := l.Classify(context.Background(), Input{Title: "Tooth autotransplantation outcomes", Language: model.LangEN})
		assert.False(t, res.Relevant)
		assert.True(t, res.Undecided)
		assert.Equal(t, "cost budget exhausted", res.Reason)
	}
	client.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	assert.InDelta(t, 5.0, budget.Spent(), 1e-9)
}

func TestLoadRubric(t *testing.T) {
	r, err := LoadRubric("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRubric, r)

	path := filepath.Join(t.TempDir(), "rubric.txt")
	require.NoError(t, os.WriteFile(path, []byte("  custom rubric\n"), 0o600))
	r, err = LoadRubric(path)
	require.NoError(t, err)
	assert.Equal(t, "custom rubric", r)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = LoadRubric(empty)
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	pre := &stubClassifier{res: model.Rejected("no topical terms")}
	gate := &stubClassifier{res: model.ClassifyResult{Relevant: true, Kind: model.KindCase}}
	c := NewChain(pre, gate)

	res := c.Classify(context.Background(), Input{Title: "t"})
	assert.False(t, res.Relevant)
	assert.Zero(t, gate.calls)

	pre.res = model.ClassifyResult{Relevant: true, Kind: model.KindNews}
	res = c.Classify(context.Background(), Input{Title: "t"})
	assert.True(t, res.Relevant)
	assert.Equal(t, model.KindCase, res.Kind)

	gate.res = model.ClassifyResult{Relevant: true}
	assert.Equal(t, model.KindNews, c.Classify(context.Background(), Input{Title: "t"}).Kind)

	gate.res = model.Rejected("rubric exclude")
	assert.False(t, c.Classify(context.Background(), Input{Title: "t"}).Relevant)
}

func TestNew(t *testing.T) {
	h := NewHeuristic(nil, 0)
	l := NewLLM(mocks.NewMockClient(t), LLMConfig{})

	c, err := New(ModeHeuristic, h, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeHeuristic, c.Name())

	c, err = New(ModeLLM, nil, l)
	require.NoError(t, err)
	assert.Equal(t, ModeLLM, c.Name())

	c, err = New(ModeChain, h, l)
	require.NoError(t, err)
	assert.Equal(t, ModeChain, c.Name())

	_, err = New(ModeChain, h, nil)
	assert.Error(t, err)
	_, err = New("magic", h, l)
	assert.Error(t, err)
}

func TestFromCandidate(t *testing.T) {
	in := FromCandidate(model.Candidate{Title: "t", RawSummary: "s", URL: "u", Language: model.LangJA, Source: model.SourcePubMed})
	assert.Equal(t, Input{Title: "t", Summary: "s", URL: "u", Language: model.LangJA, Source: model.SourcePubMed}, in)
}
