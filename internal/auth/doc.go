// Package auth provides the authenticated HTTP session used for Google Photos.
//
// NewSession is called once per run. It loads the OAuth client secrets and
// the cached token, refreshes the token when needed, and writes refreshed
// tokens back to disk. Authorize runs the interactive loopback consent flow
// that produces the cached token in the first place.
package auth
