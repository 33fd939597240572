// Package tool adapts the worker's tool surface (SPEC_FULL.md §4.10). A
// ToolInvoker mirrors the reasoner boundary: the daemon never embeds an
// MCP client directly, only this interface, so a worker can be tested
// against an in-memory StaticRegistry and a production build can wire in
// whatever concrete tool-server transport it needs without pkg/agent
// changing.
//
// Discovery is passive — the registry is configured once with the tools it
// knows about (from a template's declared names or a subprocess's
// advertised surface) and never renegotiates mid-call. Invocation is
// bounded by a per-call deadline; a timeout is an observation the worker's
// turn loop can act on, not a fatal error.
package tool
