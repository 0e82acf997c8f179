package runtime

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/felixgeelhaar/tensordrill/internal/domain"
)

func TestParseVerdict(t *testing.T) {
	stdout := "debug print from the solution\n" +
		`@@TENSORDRILL@@{"ok": true, "output": [[1, 4], [2, 5]], "test_cases": [{"id": "t1", "name": "basic", "passed": true, "message": ""}], "preloaded_packages": ["math"]}` + "\n"

	result, ok := parseVerdict(stdout)
	if !ok {
		t.Fatal("expected a verdict")
	}
	if !result.OK {
		t.Errorf("OK = false; want true")
	}
	if result.Stdout != "debug print from the solution" {
		t.Errorf("Stdout = %q; want the text before the marker", result.Stdout)
	}
	if result.Output.Rows() != 2 || result.Output.Cols() != 2 {
		t.Errorf("output shape = [%d, %d]; want [2, 2]", result.Output.Rows(), result.Output.Cols())
	}
	if len(result.TestCaseResults) != 1 || !result.TestCaseResults[0].Passed {
		t.Errorf("test cases = %+v; want one passing t1", result.TestCaseResults)
	}
	if len(result.PreloadedPackages) != 1 || result.PreloadedPackages[0] != "math" {
		t.Errorf("preloaded = %v; want [math]", result.PreloadedPackages)
	}
}

func TestParseVerdict_FailureVerdict(t *testing.T) {
	stdout := `@@TENSORDRILL@@{"ok": false, "error_code": "import_error", "message": "bad syntax"}` + "\n"

	result, ok := parseVerdict(stdout)
	if !ok {
		t.Fatal("expected a verdict")
	}
	if result.OK {
		t.Error("OK = true; want false")
	}
	if result.ErrorCode != "import_error" || result.Message != "bad syntax" {
		t.Errorf("error = %s/%s; want import_error/bad syntax", result.ErrorCode, result.Message)
	}
}

func TestParseVerdict_UsesLastMarker(t *testing.T) {
	// A solution that prints the marker itself must not shadow the harness.
	stdout := `@@TENSORDRILL@@{"ok": false}` + "\n" +
		`@@TENSORDRILL@@{"ok": true}` + "\n"

	result, ok := parseVerdict(stdout)
	if !ok {
		t.Fatal("expected a verdict")
	}
	if !result.OK {
		t.Error("expected the last marker line to win")
	}
}

func TestParseVerdict_NoMarker(t *testing.T) {
	if _, ok := parseVerdict("Traceback (most recent call last)"); ok {
		t.Error("expected no verdict without a marker")
	}
}

func TestParseVerdict_MalformedJSON(t *testing.T) {
	if _, ok := parseVerdict("@@TENSORDRILL@@{not json}\n"); ok {
		t.Error("expected no verdict for malformed json")
	}
}

func TestMarshalFixture(t *testing.T) {
	fixture := &domain.Fixture{
		FunctionName:   "transpose",
		Inputs:         map[string]domain.Matrix{"x": {{1, 2}, {3, 4}}},
		InputOrder:     []string{"x"},
		ExpectedOutput: domain.Matrix{{1, 3}, {2, 4}},
		TestCases: []domain.FixtureCase{
			{ID: "t1", Name: "basic", ExpectedOutput: domain.Matrix{{1, 3}, {2, 4}}},
		},
	}

	data, err := marshalFixture(fixture)
	if err != nil {
		t.Fatalf("marshalFixture() error = %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("payload is not valid json: %v", err)
	}
	if payload["function_name"] != "transpose" {
		t.Errorf("function_name = %v; want transpose", payload["function_name"])
	}
	if _, ok := payload["test_cases"].([]any); !ok {
		t.Errorf("test_cases missing from payload: %s", data)
	}
}

func TestDemuxOutput(t *testing.T) {
	frame := func(streamType byte, content string) []byte {
		header := []byte{streamType, 0, 0, 0, 0, 0, 0, byte(len(content))}
		return append(header, content...)
	}

	data := append(frame(1, "stdout text"), frame(2, "stderr text")...)
	stdout, stderr := demuxOutput(data)
	if stdout != "stdout text" {
		t.Errorf("stdout = %q; want stdout text", stdout)
	}
	if stderr != "stderr text" {
		t.Errorf("stderr = %q; want stderr text", stderr)
	}
}

func TestDemuxOutput_UnframedFallback(t *testing.T) {
	stdout, stderr := demuxOutput([]byte("raw"))
	if stdout != "raw" || stderr != "" {
		t.Errorf("got (%q, %q); want raw text as stdout", stdout, stderr)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("first\nsecond"); got != "first" {
		t.Errorf("firstLine = %q; want first", got)
	}
	if got := firstLine("only"); got != "only" {
		t.Errorf("firstLine = %q; want only", got)
	}
}

func TestHarnessSourceEmitsMarker(t *testing.T) {
	if !strings.Contains(harnessSource, harnessMarker) {
		t.Error("harness source must print the verdict marker")
	}
}
