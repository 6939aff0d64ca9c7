// Package integrity computes and verifies content digests of module binaries.
//
// A module's content address is the hex-encoded SHA-256 digest of its main
// binary. Manifests may spell it as a bare digest or as "<algorithm>:<digest>";
// SHA-256 is the only recognized algorithm and any other tag falls back to it.
package integrity
