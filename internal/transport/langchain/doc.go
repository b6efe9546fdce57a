// Package langchain adapts tmc/langchaingo models to the embedding and text generation
// contracts. It targets local OpenAI-compatible hosts (Ollama, llama.cpp, vLLM) that need no
// real API key.
package langchain
