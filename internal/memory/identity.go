package memory

// DeriveThreadID maps a conversation's platform identity to its thread ID.
// The derivation is a pure function: the same inputs always produce the same
// ID, so concurrent callers converge on one thread row. Direct conversations
// and guild channels use distinct namespaces; a DM whose conversation ID
// happens to equal a channel ID can never collide with it.
func DeriveThreadID(conversationID, guildID string) string {
	if guildID == "" {
		return "dm:" + conversationID
	}
	return "guild:" + guildID + ":chan:" + conversationID
}
