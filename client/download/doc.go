// Package download writes response bodies to output files under a host
// designated root directory.
//
// [Open] resolves a caller supplied relative path against the root and
// opens a temporary file next to the destination before any network
// activity starts. The returned [Sink] is an [io.Writer] for the
// transport; [Sink.Commit] verifies and renames the temporary file into
// place, and [Sink.Abort] removes it:
//
//	sink, err := download.Open(root, "maps/de_dust2.bsp", logger,
//		download.WithChecksum(sha256.New(), expectedHex),
//	)
//	if err != nil { ... }
//	defer sink.Abort()
//
//	// ... stream the body into sink ...
//
//	n, err := sink.Commit(resp.ContentLength)
package download
