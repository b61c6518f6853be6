// Package photos talks to the Google Photos Library API.
//
// Publishing an image is two-phase. Upload sends raw bytes and receives an
// opaque upload token; Commit ("mint") attaches a set of tokens to the library
// in one batchCreate call. Tokens are never persisted: a crash between the
// two phases leaves the raw upload orphaned remotely, and a re-run uploads the
// image again.
package photos
