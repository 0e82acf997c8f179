package schema

import "testing"

func TestParseShape(t *testing.T) {
	tests := []struct {
		name     string
		shape    string
		wantRows int
		wantCols int
		wantErr  bool
	}{
		{"basic", "[2, 3]", 2, 3, false},
		{"no spaces", "[4,1]", 4, 1, false},
		{"surrounding whitespace", "  [5, 5]  ", 5, 5, false},
		{"zero dimensions", "[0, 0]", 0, 0, false},
		{"missing brackets", "2, 3", 0, 0, true},
		{"one dimension", "[3]", 0, 0, true},
		{"three dimensions", "[1, 2, 3]", 0, 0, true},
		{"non-integer rows", "[n, 3]", 0, 0, true},
		{"non-integer cols", "[3, m]", 0, 0, true},
		{"negative dimension", "[-1, 3]", 0, 0, true},
		{"empty", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, cols, err := ParseShape(tt.shape)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseShape(%q) error = %v; wantErr %v", tt.shape, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if rows != tt.wantRows || cols != tt.wantCols {
				t.Errorf("ParseShape(%q) = (%d, %d); want (%d, %d)",
					tt.shape, rows, cols, tt.wantRows, tt.wantCols)
			}
		})
	}
}
