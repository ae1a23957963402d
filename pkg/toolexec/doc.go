// Package toolexec implements the tool-calling core: a static manifest
// of tool schemas, a registry of activated tools with provider wire
// translation, an explicit handler dispatch table, and an executor that
// validates parameters and contains every handler failure.
//
// The Manager ties the pieces together from configuration. It owns the
// registry and handler table and builds the Executor over both; the
// tool-calling loop in pkg/agent consumes all three through it.
package toolexec
