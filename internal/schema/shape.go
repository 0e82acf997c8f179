package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseShape parses a declared output shape of the form "[rows, cols]".
func ParseShape(shape string) (rows, cols int, err error) {
	trimmed := strings.TrimSpace(shape)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return 0, 0, fmt.Errorf("shape %q is not of the form [rows, cols]", shape)
	}

	parts := strings.Split(trimmed[1:len(trimmed)-1], ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("shape %q must have exactly two dimensions", shape)
	}

	rows, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("shape %q has a non-integer row dimension", shape)
	}

	cols, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("shape %q has a non-integer column dimension", shape)
	}

	if rows < 0 || cols < 0 {
		return 0, 0, fmt.Errorf("shape %q has a negative dimension", shape)
	}

	return rows, cols, nil
}
