// Package inference owns the single stateful language-model engine.
//
// A Session serializes model loads, model switches and generations through
// one lock so that at most one of them touches the engine at a time. Token
// output is streamed to the caller in arrival order.
//
// Engines:
//   - OpenAIEngine talks to any OpenAI-compatible server (llama-server,
//     Ollama, vLLM) and is the default.
//   - LlamaEngine runs llama.cpp in process and is only available when built
//     with the 'llama' tag.
package inference
