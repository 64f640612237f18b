// Package rag assembles retrieval-augmented answers over an indexed
// workspace.
//
// The Orchestrator runs the pipeline end to end: embed the question,
// retrieve similar passages from the vector store, assemble a grounded
// prompt, and generate an answer through a ChatClient. Retrieval-only
// modes short-circuit before generation and return the assembled context
// directly, which keeps the pipeline usable without any LLM configured.
package rag
