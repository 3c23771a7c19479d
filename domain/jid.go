package domain

import "strings"

const (
	// GroupServer is the namespace the remote service uses for multi-party conversations.
	GroupServer = "g.us"
	// UserServer is the namespace of direct conversations.
	UserServer = "s.whatsapp.net"
)

// IsGroupConversation reports whether a conversation identifier lives in the group namespace.
func IsGroupConversation(jid string) bool {
	return strings.HasSuffix(jid, "@"+GroupServer)
}

// CanonicalNumber strips the server namespace and any device suffix from an identifier.
// "33612345678:12@s.whatsapp.net" becomes "33612345678".
func CanonicalNumber(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}
