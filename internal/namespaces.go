package internal

import (
	"time"

	"github.com/sunnychangai/ai-travel-agent-app-sub002/pkg/cache"
)

// Standard namespace names used by the assistant. RegisterNamespace
// accepts arbitrary names; these are the ones the default invalidation
// rules and presets know about.
const (
	NamespaceConversation    = "conversation"
	NamespaceMessages        = "messages"
	NamespaceRecommendations = "recommendations"
	NamespacePlaces          = "places"
	NamespaceItineraries     = "itineraries"
	NamespacePreferences     = "preferences"
)

// DefaultNamespaces returns the assistant's standard cache layout.
//
// Conversation state and messages are identity-scoped and survive reloads;
// geocoding and place lookups are shared across identities and long-lived;
// recommendations go stale quickly and stay memory-only.
func DefaultNamespaces() []cache.Config {
	return []cache.Config{
		{
			Namespace:      NamespaceConversation,
			TTL:            time.Hour,
			MaxSize:        50,
			IdentityScoped: true,
			Persistent:     true,
		},
		{
			Namespace:      NamespaceMessages,
			TTL:            24 * time.Hour,
			MaxSize:        200,
			IdentityScoped: true,
			Persistent:     true,
		},
		{
			Namespace:      NamespaceRecommendations,
			TTL:            10 * time.Minute,
			MaxSize:        100,
			IdentityScoped: true,
		},
		{
			Namespace:  NamespacePlaces,
			TTL:        24 * time.Hour,
			MaxSize:    500,
			Persistent: true,
		},
		{
			Namespace:      NamespaceItineraries,
			TTL:            12 * time.Hour,
			MaxSize:        100,
			IdentityScoped: true,
			Persistent:     true,
		},
		{
			Namespace:      NamespacePreferences,
			TTL:            0, // valid until explicitly invalidated
			MaxSize:        20,
			IdentityScoped: true,
			Persistent:     true,
		},
	}
}
