package validate

import (
	"strings"
	"testing"
)

func TestPartyTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid", "Friday Horror Night", ""},
		{"empty", "", "Please enter a party title."},
		{"blank", "   ", "Please enter a party title."},
		{"at limit", strings.Repeat("a", MaxPartyTitleLength), ""},
		{"over limit", strings.Repeat("a", MaxPartyTitleLength+1), "title must be 200 characters or fewer"},
	}
	for _, tt := range tests {
		if got := PartyTitle(tt.input); got != tt.want {
			t.Errorf("PartyTitle(%s [len=%d]) = %q, want %q", tt.name, len(tt.input), got, tt.want)
		}
	}
}

func TestTheme(t *testing.T) {
	for _, theme := range []string{"", "default", "horror", "scifi", "comedy"} {
		if got := Theme(theme); got != "" {
			t.Errorf("Theme(%q) = %q, want valid", theme, got)
		}
	}
	if got := Theme("western"); got == "" {
		t.Error("Theme(western) should be rejected")
	}
}

func TestMinimumLengths(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		ok   string
		bad  string
		want string
	}{
		{"viewing history", ViewingHistory, "Alien, Heat", "Alien", "Please describe your viewing history in a bit more detail."},
		{"preferences", Preferences, "tense", "sad", "Please describe your preferences."},
		{"search title", SearchTitle, "Up", "U", "Please enter a movie title."},
		{"description", Description, "rainy", "rain", "Please describe the mood or theme."},
		{"question", Question, "?", "", "Question cannot be empty."},
		{"chat history", ChatHistory, "a: hi", "", "Chat history cannot be empty."},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.ok); got != "" {
			t.Errorf("%s(%q) = %q, want valid", tt.name, tt.ok, got)
		}
		if got := tt.fn(tt.bad); got != tt.want {
			t.Errorf("%s(%q) = %q, want %q", tt.name, tt.bad, got, tt.want)
		}
	}
}

func TestMovieTitleAllowsEmpty(t *testing.T) {
	if got := MovieTitle(""); got != "" {
		t.Errorf("MovieTitle(\"\") = %q, want valid", got)
	}
	if got := MovieTitle(strings.Repeat("x", MaxMovieTitleLength+1)); got == "" {
		t.Error("over-long movie title should be rejected")
	}
}

func TestLengthCountsRunes(t *testing.T) {
	title := strings.Repeat("é", MaxPartyTitleLength)
	if got := PartyTitle(title); got != "" {
		t.Errorf("PartyTitle with %d runes = %q, want valid", MaxPartyTitleLength, got)
	}
}

func TestPasscode(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"", true},
		{"abc", false},
		{"abcd", true},
		{strings.Repeat("p", MaxPasscodeLength), true},
		{strings.Repeat("p", MaxPasscodeLength+1), false},
	}
	for _, tt := range tests {
		if got := Passcode(tt.input); (got == "") != tt.valid {
			t.Errorf("Passcode(len=%d) = %q, valid want %v", len(tt.input), got, tt.valid)
		}
	}
}

func TestFieldLimits(t *testing.T) {
	limits := FieldLimits()
	if limits["partyTitle"] != MaxPartyTitleLength {
		t.Errorf("partyTitle = %d, want %d", limits["partyTitle"], MaxPartyTitleLength)
	}
	if limits["passcode"] != MaxPasscodeLength {
		t.Errorf("passcode = %d, want %d", limits["passcode"], MaxPasscodeLength)
	}
}
