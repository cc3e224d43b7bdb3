package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Text field length limits, shared by the API handlers and the web client.
const (
	MaxPartyTitleLength     = 200
	MaxMovieTitleLength     = 200
	MaxQuestionLength       = 1000
	MaxChatHistoryLength    = 20000
	MaxViewingHistoryLength = 2000
	MaxPreferencesLength    = 1000
	MaxDescriptionLength    = 1000
	MaxSongTitleLength      = 200
	MaxArtistLength         = 200
	MaxFilenameLength       = 255
	MaxPasscodeLength       = 72

	MinViewingHistoryLength = 10
	MinPreferencesLength    = 5
	MinSearchTitleLength    = 2
	MinDescriptionLength    = 5
	MinPasscodeLength       = 4
)

var themes = map[string]bool{
	"default": true,
	"horror":  true,
	"scifi":   true,
	"comedy":  true,
}

func checkLen(value string, max int, field string) string {
	if utf8.RuneCountInString(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func checkRange(value string, min, max int, field, tooShort string) string {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < min {
		return tooShort
	}
	return checkLen(value, max, field)
}

func PartyTitle(s string) string {
	return checkRange(s, 1, MaxPartyTitleLength, "title", "Please enter a party title.")
}

// Theme reports an error for anything but the known party themes. Empty
// means default.
func Theme(s string) string {
	if s == "" || themes[s] {
		return ""
	}
	return "theme must be one of default, horror, scifi, comedy"
}

// MovieTitle accepts any title up to the limit; it keys discussion starters
// and trivia, where an empty title is allowed.
func MovieTitle(s string) string { return checkLen(s, MaxMovieTitleLength, "movie title") }

func SearchTitle(s string) string {
	return checkRange(s, MinSearchTitleLength, MaxMovieTitleLength, "movie title", "Please enter a movie title.")
}
func Question(s string) string {
	return checkRange(s, 1, MaxQuestionLength, "question", "Question cannot be empty.")
}
func ChatHistory(s string) string {
	return checkRange(s, 1, MaxChatHistoryLength, "chat history", "Chat history cannot be empty.")
}
func ViewingHistory(s string) string {
	return checkRange(s, MinViewingHistoryLength, MaxViewingHistoryLength, "viewing history",
		"Please describe your viewing history in a bit more detail.")
}
func Preferences(s string) string {
	return checkRange(s, MinPreferencesLength, MaxPreferencesLength, "preferences", "Please describe your preferences.")
}
func Description(s string) string {
	return checkRange(s, MinDescriptionLength, MaxDescriptionLength, "description", "Please describe the mood or theme.")
}
func SongTitle(s string) string {
	return checkRange(s, 1, MaxSongTitleLength, "song title", "Please enter a song title.")
}
func Artist(s string) string {
	return checkRange(s, 1, MaxArtistLength, "artist", "Please enter an artist.")
}
func Filename(s string) string {
	return checkRange(s, 1, MaxFilenameLength, "filename", "filename is required")
}

// Passcode is optional; when set it must fit bcrypt's input limit.
func Passcode(s string) string {
	if s == "" {
		return ""
	}
	if len(s) < MinPasscodeLength {
		return fmt.Sprintf("passcode must be at least %d characters", MinPasscodeLength)
	}
	if len(s) > MaxPasscodeLength {
		return fmt.Sprintf("passcode must be %d bytes or fewer", MaxPasscodeLength)
	}
	return ""
}

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"partyTitle":     MaxPartyTitleLength,
		"movieTitle":     MaxMovieTitleLength,
		"question":       MaxQuestionLength,
		"chatHistory":    MaxChatHistoryLength,
		"viewingHistory": MaxViewingHistoryLength,
		"preferences":    MaxPreferencesLength,
		"description":    MaxDescriptionLength,
		"songTitle":      MaxSongTitleLength,
		"artist":         MaxArtistLength,
		"filename":       MaxFilenameLength,
		"passcode":       MaxPasscodeLength,
	}
}
