// Package rag retrieves semantically similar documents from an external
// vector search service and renders them as context for the model.
package rag
