// Package agent runs the bounded tool-calling loop: it interleaves
// provider chat calls with tool executions until the model stops, the
// iteration ceiling is reached, or the provider signals something the
// loop answers with a graceful fallback.
package agent
