// Package reasoner adapts a language model to the worker's turn loop
// (SPEC_FULL.md §4.9). It assembles a three-part prompt (prefix, the
// template's custom section with {{AVAILABLE_TOOLS}} and {{AGENT_NETWORK}}
// substituted, and a suffix fixing the expected structured-output grammar),
// delegates the actual model call to an injected Reasoner, and parses the
// raw reply into a ReasonerResult tagged union.
//
// The package is single-call: it never loops waiting for a satisfactory
// reply. Retrying a parse failure is pkg/agent's job (SPEC_FULL.md §4.8
// step 2), since only the worker knows the retry budget and what to do
// once it's exhausted.
package reasoner
