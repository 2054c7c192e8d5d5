// Package nlp is the generative-model fallback of the interpretation
// pipeline: when the template and regex fast paths give up, the stripped
// utterance is sent to a text model with a fixed instruction prompt and the
// reply is normalized into a command.
//
// The fallback is deliberately non-fatal. Transport errors, malformed JSON,
// hallucinated action tags: all of them normalize to the unknown command and
// the pipeline moves on to keyword inference. Only the rate limiter can stop
// a call before it is made.
package nlp

import "context"

// Provider generates a model completion for a system instruction plus a
// single user message. Implementations must be safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
