package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Groceries", "groceries"},
		{"  grocery ", "groceries"},
		{"SUPERMARKET", "groceries"},
		{"transportation", "transport"},
		{"Dining", "restaurants"},
		{"restaurant", "restaurants"},
		{"subscription", "subscriptions"},
		{"home  office", "home office"},
		{"ｇｒｏｃｅｒｙ", "groceries"}, // full-width folds via NFKC
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCategory(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeCategoryIdempotent(t *testing.T) {
	for _, in := range []string{"grocery", "groceries", "Dining", "transport"} {
		once := NormalizeCategory(in)
		assert.Equal(t, once, NormalizeCategory(once))
	}
}

func TestExtractCategory(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"am i over budget on groceries", "groceries", true},
		{"am i under budget for transport", "transport", true},
		{"what is the budget for entertainment", "entertainment", true},
		{"budget of utilities", "utilities", true},
		{"how is my groceries budget", "groceries", true},
		{"how much did i spend on groceries", "groceries", true},
		{"i spent money on dining", "restaurants", true},
		{"what did i spend for transport", "transport", true},
		{"spending on home office", "home office", true},

		// The "X budget" form must not capture over/under qualifiers,
		// but the earlier over/under pattern still wins when present.
		{"am i over budget", "", false},
		{"whats my budget", "", false},
		{"how much did i spend", "", false},
		// Stop words strip to nothing.
		{"what did i spend on this", "", false},
		// Single-character residue is rejected.
		{"spent on x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExtractCategory(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
