package integrity

import (
	// registers SHA-256 so digest.SHA256.Available() reports true
	_ "crypto/sha256"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.uber.org/zap"

	"github.com/wasmship/wasmship/errors"
)

// Algorithm is the only digest algorithm modules are addressed by.
const Algorithm = digest.SHA256

// ParseHashSpec parses a manifest hash spec, either a bare hex digest or
// "<algorithm>:<digest>". Unknown algorithms fall back to SHA-256.
func ParseHashSpec(spec string) (digest.Digest, error) {
	alg, encoded, found := strings.Cut(spec, ":")
	if !found {
		alg, encoded = string(Algorithm), spec
	}

	if digest.Algorithm(alg) != Algorithm {
		Logger().Debug("unknown hash algorithm, falling back to sha256",
			zap.String("algorithm", alg),
			zap.String("spec", spec))
	}

	d := digest.NewDigestFromEncoded(Algorithm, encoded)
	if err := d.Validate(); err != nil {
		return "", errors.New(errors.PhaseManifest, errors.KindInvalidInput).
			Detail("invalid hash spec %q", spec).
			Cause(err).
			Build()
	}
	return d, nil
}

// FileDigest streams the file at path through SHA-256.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NotFound(errors.PhaseVerify, "binary", path)
		}
		return "", errors.IO(errors.PhaseVerify, "open "+path, err)
	}
	defer f.Close()

	d, err := Algorithm.FromReader(f)
	if err != nil {
		return "", errors.IO(errors.PhaseVerify, "read "+path, err)
	}
	return d, nil
}

// VerifyFile checks that the file at path hashes to expected.
// Returns a broken_file error carrying both digests on mismatch.
func VerifyFile(path string, expected digest.Digest) error {
	if err := expected.Validate(); err != nil {
		return errors.New(errors.PhaseVerify, errors.KindInvalidInput).
			Path(path).
			Detail("invalid expected digest %q", expected).
			Cause(err).
			Build()
	}
	if expected.Algorithm() != Algorithm {
		return errors.Unsupported(errors.PhaseVerify, "digest algorithm "+string(expected.Algorithm()))
	}

	actual, err := FileDigest(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return errors.BrokenFile(path, expected.String(), actual.String())
	}
	return nil
}
