// Package static answers a single request per connection from a directory
// of files.
//
// Only the request line is read. "GET <target> HTTP/x" is answered with the
// file's bytes; a directory target serves its index file (home.html by
// default); a missing file serves the configured not-found page with 404,
// or a plain-text 404 when that page is absent. Anything else gets 400.
package static
