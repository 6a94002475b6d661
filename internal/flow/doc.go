// Package flow turns free-form agent replies into Typebot flow documents
// that are safe to submit to the Typebot API.
//
// Processing runs in stages, each a pure function over text or decoded JSON:
//
//   - Extract: recover a JSON object from prose, fenced blocks or raw JSON
//   - Decode: parse the object, keeping numbers verbatim
//   - Shape: required keys and container types of the document
//   - Graph: identifier wiring between events, blocks, items, edges and groups
//
// Extraction and decoding failures are returned as errors (errx kinds
// NoJSONFound and JSONSyntaxError). Shape and graph problems are collected
// into a Result so every offending field is reported at once.
package flow
