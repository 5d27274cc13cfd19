package signup

import (
	"testing"

	"github.com/hitoshi/holdwatch/internal/model"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		target string
		want   bool
	}{
		{"完全一致", "Herre 3 træning", "Herre 3 træning", true},
		{"大文字小文字と前後の空白を無視", " Herre 3 Træning ", "herre 3 træning", true},
		{"部分一致は不可", "Herre 3 træning ekstra", "Herre 3 træning", false},
		{"別の名前", "Damer 1 kamp", "Herre 3 træning", false},
		{"イベント名が空", "", "Herre 3 træning", false},
		{"対象名が空", "Herre 3 træning", "", false},
		{"空白のみ", "   ", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(model.Event{Name: tt.event}, tt.target)
			if got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.event, tt.target, got, tt.want)
			}
		})
	}
}
