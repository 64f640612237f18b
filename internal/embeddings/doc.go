// Package embeddings turns text into fixed-dimension vectors.
//
// A Provider is a raw embedding backend: a TEI (Text Embeddings Inference)
// server, any OpenAI-compatible API via langchaingo, or a local fastembed
// ONNX model (CGO builds only). Service wraps a Provider with a persistent
// content-addressed cache so identical text never re-triggers a backend
// call, batches cache misses into a single backend request, and rate-limits
// bulk generation.
//
// Output vector order always matches input text order, and dimensionality
// is constant for a configured model.
package embeddings
