package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

// harnessSource is the Python driver copied into the sandbox next to the
// solution. It loads fixture.json, calls the solution function per test case
// and prints a single JSON verdict line prefixed with harnessMarker.
const harnessSource = `import json
import sys

MARKER = "@@TENSORDRILL@@"
TOLERANCE = 1e-6

def close(a, b):
    if len(a) != len(b):
        return False
    for ra, rb in zip(a, b):
        if len(ra) != len(rb):
            return False
        for va, vb in zip(ra, rb):
            if abs(va - vb) > TOLERANCE:
                return False
    return True

def main():
    with open("fixture.json") as f:
        fixture = json.load(f)

    preloaded = []
    try:
        import math  # noqa: F401
        preloaded.append("math")
    except ImportError:
        pass

    try:
        import solution
    except Exception as exc:
        emit({"ok": False, "error_code": "import_error", "message": str(exc),
              "preloaded_packages": preloaded})
        return

    fn = getattr(solution, fixture["function_name"], None)
    if fn is None:
        emit({"ok": False, "error_code": "function_not_found",
              "message": "no function named " + fixture["function_name"],
              "preloaded_packages": preloaded})
        return

    results = []
    for case in fixture.get("test_cases", []):
        inputs = case.get("inputs") or fixture.get("inputs") or {}
        args = [inputs[name] for name in fixture.get("input_order", [])]
        try:
            actual = fn(*args)
            passed = close(actual, case["expected_output"])
            message = "" if passed else "output differs from expected"
        except Exception as exc:
            passed = False
            message = str(exc)
        results.append({"id": case["id"], "name": case.get("name", ""),
                        "passed": passed, "message": message})

    inputs = fixture.get("inputs") or {}
    args = [inputs[name] for name in fixture.get("input_order", [])]
    try:
        output = fn(*args)
    except Exception as exc:
        emit({"ok": False, "error_code": "execution_error", "message": str(exc),
              "test_cases": results, "preloaded_packages": preloaded})
        return

    emit({"ok": True, "output": output, "test_cases": results,
          "preloaded_packages": preloaded})

def emit(verdict):
    sys.stdout.flush()
    print(MARKER + json.dumps(verdict))

if __name__ == "__main__":
    main()
`

// harnessMarker prefixes the harness verdict line so it survives any stray
// prints from the solution itself.
const harnessMarker = "@@TENSORDRILL@@"

type harnessVerdict struct {
	OK        bool        `json:"ok"`
	Output    [][]float64 `json:"output"`
	TestCases []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Passed  bool   `json:"passed"`
		Message string `json:"message"`
	} `json:"test_cases"`
	ErrorCode         string   `json:"error_code"`
	Message           string   `json:"message"`
	PreloadedPackages []string `json:"preloaded_packages"`
}

type fixturePayload struct {
	FunctionName string                 `json:"function_name"`
	Inputs       map[string][][]float64 `json:"inputs"`
	InputOrder   []string               `json:"input_order"`
	TestCases    []fixtureCasePayload   `json:"test_cases"`
}

type fixtureCasePayload struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	Inputs         map[string][][]float64 `json:"inputs,omitempty"`
	ExpectedOutput [][]float64            `json:"expected_output"`
}

func marshalFixture(fixture *domain.Fixture) (string, error) {
	payload := fixturePayload{
		FunctionName: fixture.FunctionName,
		Inputs:       fromMatrices(fixture.Inputs),
		InputOrder:   fixture.InputOrder,
	}
	for _, tc := range fixture.TestCases {
		payload.TestCases = append(payload.TestCases, fixtureCasePayload{
			ID:             tc.ID,
			Name:           tc.Name,
			Inputs:         fromMatrices(tc.Inputs),
			ExpectedOutput: tc.ExpectedOutput,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal fixture: %w", err)
	}
	return string(data), nil
}

func fromMatrices(matrices map[string]domain.Matrix) map[string][][]float64 {
	if matrices == nil {
		return nil
	}
	raw := make(map[string][][]float64, len(matrices))
	for name, m := range matrices {
		raw[name] = m
	}
	return raw
}

// parseVerdict extracts the marked verdict line from sandbox stdout and maps
// it onto a RunResult. Output before the marker is the solution's own stdout.
func parseVerdict(stdout string) (*domain.RunResult, bool) {
	idx := strings.LastIndex(stdout, harnessMarker)
	if idx < 0 {
		return nil, false
	}

	line := stdout[idx+len(harnessMarker):]
	if newline := strings.IndexByte(line, '\n'); newline >= 0 {
		line = line[:newline]
	}

	var verdict harnessVerdict
	if err := json.Unmarshal([]byte(line), &verdict); err != nil {
		return nil, false
	}

	result := &domain.RunResult{
		OK:                verdict.OK,
		Output:            domain.Matrix(verdict.Output),
		Stdout:            strings.TrimSuffix(stdout[:idx], "\n"),
		PreloadedPackages: verdict.PreloadedPackages,
		ErrorCode:         verdict.ErrorCode,
		Message:           verdict.Message,
	}
	for _, tc := range verdict.TestCases {
		result.TestCaseResults = append(result.TestCaseResults, domain.TestCaseResult{
			ID:      tc.ID,
			Name:    tc.Name,
			Passed:  tc.Passed,
			Message: tc.Message,
		})
	}
	return result, true
}
