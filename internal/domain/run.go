package domain

// TestCaseResult is the sandbox runtime's verdict for one fixture case.
type TestCaseResult struct {
	ID      string
	Name    string
	Passed  bool
	Message string
}

// RunResult is the sandbox runtime's outcome for one execution. When OK is
// false, ErrorCode and Message carry the runtime's structured failure; the
// remaining fields may be partially populated (captured stdout survives a
// failed run).
type RunResult struct {
	OK                bool
	Output            Matrix
	TestCaseResults   []TestCaseResult
	Stdout            string
	PreloadedPackages []string
	ErrorCode         string
	Message           string
}

// FailingCaseIDs returns the ids of test cases that did not pass.
func (r *RunResult) FailingCaseIDs() []string {
	var failing []string
	for _, tc := range r.TestCaseResults {
		if !tc.Passed {
			failing = append(failing, tc.ID)
		}
	}
	return failing
}
