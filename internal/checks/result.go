package checks

// SubmissionResult is the runner's aggregated output: an explicit file
// order (lexicographic by qualified name) plus, for each file, its check
// results in check-declaration order — the in-process counterpart to
// wire.SubmissionCheck.
type SubmissionResult struct {
	FileOrder []string
	Results   map[string][]Result
}
