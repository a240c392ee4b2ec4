package confutil

import (
	"reflect"
	"testing"
)

func TestNiceSort(t *testing.T) {
	tests := []struct {
		name  string
		in    []string
		want  []string
	}{
		{
			name: "numeric node names",
			in:   []string{"node10", "node2", "node1"},
			want: []string{"node1", "node2", "node10"},
		},
		{
			name: "already sorted",
			in:   []string{"a", "b", "c"},
			want: []string{"a", "b", "c"},
		},
		{
			name: "mixed uuid-name pairs",
			in:   []string{"uuid-2 groupB", "uuid-1 groupA", "uuid-10 groupC"},
			want: []string{"uuid-1 groupA", "uuid-2 groupB", "uuid-10 groupC"},
		},
		{
			name: "empty input",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NiceSort(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NiceSort(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLooksLikeUUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", true},
		{"plain name", "production-group", false},
		{"too short", "550e8400-e29b-41d4-a716", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeUUID(tt.in); got != tt.want {
				t.Errorf("LooksLikeUUID(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
