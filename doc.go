// Package scout provides an autonomous research agent platform.
//
// Scout answers natural-language research questions by running a ReAct
// reasoning loop over a hybrid (vector + keyword) retrieval index and a
// registry of typed, sandboxed tools, producing cited answers with a full
// audit trail of every thought, action, and observation.
//
// # Quick Start
//
// Install Scout:
//
//	go install github.com/veraxis/scout/cmd/scout@latest
//
// Create a configuration:
//
//	llm:
//	  provider: "openai"
//	  model: "gpt-4o-mini"
//	  api_key: "${OPENAI_API_KEY}"
//
//	embedder:
//	  provider: "openai"
//	  model: "text-embedding-3-small"
//	  api_key: "${OPENAI_API_KEY}"
//
// Ingest a corpus and ask a question:
//
//	scout ingest ./docs
//	scout research "What is the time complexity of quicksort?"
//
// Or run the HTTP server with SSE streaming:
//
//	scout serve --config scout.yaml
//
// # Using as Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/veraxis/scout/pkg/agent"
//	    "github.com/veraxis/scout/pkg/retriever"
//	    "github.com/veraxis/scout/pkg/config"
//	)
//
// # Key Features
//
//   - **ReAct loop**: auditable thought/action/observation reasoning
//   - **Hybrid retrieval**: dense vector + BM25 keyword search, merged,
//     deduplicated, and optionally reranked
//   - **Typed tools**: schema-validated arguments, per-tool timeouts,
//     bounded retries, sandboxed command execution
//   - **Session memory**: append-only history with a rolling summary
//   - **Trace sink**: one structured event per step, replayable executions
//   - **Pluggable backends**: OpenAI, Anthropic, Gemini, Ollama; Chromem,
//     Qdrant, Pinecone
//
// # Architecture
//
// A question enters the reasoning engine with prior session memory; each
// iteration may consult the retriever or the tool executor; every state
// transition emits a trace event; the loop terminates in a cited answer
// appended to the session.
//
// # Alpha Status
//
// Scout is currently in alpha development. APIs may change, and some
// features are experimental.
package scout
