// Package tmdb provides the TMDB v3 client used by the refresh stage and the
// discovery job.
//
// It fetches movie details (with keywords and credits appended) and the
// now playing, top rated and popular listings. Requests share a token bucket
// limiter so parallel stage workers stay under the configured request rate,
// and detail responses are kept in a short-lived cache so a discovery pass
// followed by a refresh does not fetch the same record twice.
package tmdb
