package gateway

import "context"

// LanguageModel produces text from a system and a user message.
type LanguageModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// SpeechSynthesizer writes spoken audio for text to outPath.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}
