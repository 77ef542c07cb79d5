// Package enrich generates a title and summary for post content with a local
// Ollama model and parses the model's labeled reply.
package enrich
