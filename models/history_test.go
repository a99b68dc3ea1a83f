package models

import "testing"

func TestFieldDiffs(t *testing.T) {
	cases := []struct {
		name     string
		old      map[string]any
		new      map[string]any
		excluded []string
		want     string
	}{
		{
			name: "no changes",
			old:  map[string]any{"name": "Rice", "tax": 5},
			new:  map[string]any{"name": "Rice", "tax": 5},
			want: "",
		},
		{
			name: "single change",
			old:  map[string]any{"price": "1.000"},
			new:  map[string]any{"price": "1.200"},
			want: "price changed from '1.000' to '1.200'",
		},
		{
			name: "multiple changes in sorted key order",
			old:  map[string]any{"name": "Rice", "tax": 5, "brand": "A"},
			new:  map[string]any{"name": "Jasmine Rice", "tax": 7, "brand": "A"},
			want: "name changed from 'Rice' to 'Jasmine Rice', tax changed from '5' to '7'",
		},
		{
			name:     "excluded keys are skipped",
			old:      map[string]any{"name": "Mya", "updated_at": "a"},
			new:      map[string]any{"name": "Thiri", "updated_at": "b"},
			excluded: []string{"updated_at"},
			want:     "name changed from 'Mya' to 'Thiri'",
		},
		{
			name: "field absent before",
			old:  map[string]any{},
			new:  map[string]any{"email": "x@y.com"},
			want: "email changed from '<nil>' to 'x@y.com'",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FieldDiffs(tc.old, tc.new, tc.excluded...)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
