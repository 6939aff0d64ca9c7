// Package protocol defines the wire contract between the wasmship daemon and
// its clients: HTTP/1.1 over a Unix-domain socket, one request per
// connection.
//
//	POST /v1/commands                      Command JSON -> text/plain results
//	GET  /v1/modules/{name}/{tag}/exports  -> []Export JSON
//	GET  /_ping                            -> Phrase
//
// A successful run streams one line per result value. Failures carry a
// non-2xx status (see StatusFor), the error message as body and the error
// kind in the X-Wasmship-Error-Kind header.
package protocol
