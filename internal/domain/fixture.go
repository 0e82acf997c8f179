package domain

// Matrix is a toy row-major tensor.
type Matrix [][]float64

// Rows returns the number of rows in the matrix.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the number of columns, 0 for an empty matrix.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// FixtureCase is one deterministic input/expected-output pair.
type FixtureCase struct {
	ID             string
	Name           string
	Inputs         map[string]Matrix
	ExpectedOutput Matrix
}

// Fixture is the deterministic execution bundle for one card: named inputs,
// the order they are passed to the solution function, and per-case
// expectations.
type Fixture struct {
	FunctionName   string
	Inputs         map[string]Matrix
	InputOrder     []string
	TestCases      []FixtureCase
	ExpectedOutput Matrix
}
