// Package embedding computes description vectors and keeps them in a local
// vector index.
//
// Embedder talks to any OpenAI-compatible /embeddings endpoint (OpenAI,
// Ollama, vLLM). Index stores one float32 vector per movie in a SQLite file
// next to the queue database and answers cosine-distance queries by full
// scan. Indexer combines both, and Stage is the CREATE_EMBEDDING handler.
package embedding
