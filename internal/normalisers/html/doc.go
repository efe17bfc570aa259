// Package html provides a Normaliser implementation for HTML documents.
// It extracts readable text content from HTML, stripping tags, scripts,
// and styles, and decoding entities for clean indexable content.
package html
