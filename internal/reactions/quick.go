package reactions

var quickReactionEmojis = []string{"👍", "👎", "❤️", "😂", "😮", "🎉"}
var quickReactionSet = buildQuickReactionSet()

func buildQuickReactionSet() map[string]bool {
	set := make(map[string]bool, len(quickReactionEmojis))
	for _, emoji := range quickReactionEmojis {
		set[emoji] = true
	}
	return set
}

// QuickReactions returns the emoji offered as one-tap reactions.
func QuickReactions() []string {
	return append([]string(nil), quickReactionEmojis...)
}

// IsQuickReaction reports whether a chat message body is exactly one of the
// quick-reaction emoji.
func IsQuickReaction(body string) bool {
	return quickReactionSet[body]
}
