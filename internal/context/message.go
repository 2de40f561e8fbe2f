// Package context turns session histories into the message lists sent to
// chat completion endpoints.
package context

// Message is a model-agnostic chat message used on the wire to providers.
type Message struct {
	Role    string
	Content string
}
