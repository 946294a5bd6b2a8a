// Package generate provides the packing suggestion backends: a real
// generative model client and a deterministic mock substitute.
//
// Both produce a SuggestionList whose Source field records which backend
// confirmed the result, so a substitute is never mistaken for model
// output downstream.
package generate
