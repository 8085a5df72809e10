package classify

import (
	"context"

	"github.com/sells-group/autotrans-cli/internal/model"
)

// Chain runs a cheap classifier first and only sends its accepts to the
// final gate.
type Chain struct {
	pre  Classifier
	gate Classifier
}

// NewChain creates a Chain.
func NewChain(pre, gate Classifier) *Chain {
	return &Chain{pre: pre, gate: gate}
}

// Name implements Classifier.
func (c *Chain) Name() string { return ModeChain }

// Classify implements Classifier. The gate's verdict is final; a gate accept
// without a kind keeps the pre-filter's kind.
func (c *Chain) Classify(ctx context.Context, in Input) model.ClassifyResult {
	pre := c.pre.Classify(ctx, in)
	if !pre.Relevant {
		return pre
	}
	res := c.gate.Classify(ctx, in)
	if res.Relevant && res.Kind == "" {
		res.Kind = pre.Kind
	}
	return res
}
