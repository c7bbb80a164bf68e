// Package description turns stored movie records into the text that gets
// embedded.
//
// Compose builds a labelled description from a record, Normalizer cleans it
// up deterministically, and Stage is the preprocess handler that ties both
// to the queue.
package description
