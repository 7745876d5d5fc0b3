package store

import (
	"reflect"
	"testing"
)

func intp(v int) *int { return &v }

func TestResolveInsertIndex(t *testing.T) {
	tests := []struct {
		name      string
		requested *int
		length    int
		want      int
	}{
		{"nil appends", nil, 4, 4},
		{"nil appends to empty", nil, 0, 0},
		{"negative clamps to front", intp(-5), 4, 0},
		{"past end appends", intp(14), 4, 4},
		{"exact end appends", intp(4), 4, 4},
		{"in range passes through", intp(2), 4, 2},
		{"zero stays at front", intp(0), 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveInsertIndex(tt.requested, tt.length)
			if got != tt.want {
				t.Fatalf("ResolveInsertIndex(%v, %d) = %d, want %d", tt.requested, tt.length, got, tt.want)
			}
		})
	}
}

func TestRemoveID(t *testing.T) {
	got := removeID([]int64{1, 2, 3, 4}, 3)
	if want := []int64{1, 2, 4}; !reflect.DeepEqual(got, want) {
		t.Fatalf("removeID = %v, want %v", got, want)
	}
	got = removeID([]int64{1, 2}, 9)
	if want := []int64{1, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("removeID of absent id = %v, want %v", got, want)
	}
}

func TestInsertID(t *testing.T) {
	got := insertID([]int64{1, 2, 3}, 1, 9)
	if want := []int64{1, 9, 2, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("insertID = %v, want %v", got, want)
	}
	got = insertID([]int64{}, 0, 9)
	if want := []int64{9}; !reflect.DeepEqual(got, want) {
		t.Fatalf("insertID into empty = %v, want %v", got, want)
	}
	got = insertID([]int64{1, 2}, 2, 9)
	if want := []int64{1, 2, 9}; !reflect.DeepEqual(got, want) {
		t.Fatalf("insertID at end = %v, want %v", got, want)
	}
}
