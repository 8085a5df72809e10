package classify

import (
	"context"

	"github.com/sells-group/autotrans-cli/internal/model"
)

type fakeBody struct {
	text  string
	err   error
	calls int
}

func (f *fakeBody) Body(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

// stubClassifier returns a fixed result and counts calls.
type stubClassifier struct {
	res   model.ClassifyResult
	calls int
}

func (s *stubClassifier) Name() string { return "stub" }

func (s *stubClassifier) Classify(_ context.Context, _ Input) model.ClassifyResult {
	s.calls++
	return s.res
}
