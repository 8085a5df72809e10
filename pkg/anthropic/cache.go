package anthropic

// BuildCachedSystemBlocks returns a single system block marked for prompt
// caching. The classifier rubric and planner instructions are identical
// across calls in a run, so they are sent this way.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: "5m"}}}
}
