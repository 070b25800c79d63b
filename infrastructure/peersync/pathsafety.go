package peersync

import (
	"path"
	"strings"

	"duet/domain/errkind"
)

// guardComponent enforces §4.10: every incoming filename must be exactly
// one normal path component — no separators, no ".." traversal, no
// absolute prefix. Hashed paths already satisfy this by construction, but
// the responder must never trust a peer's claim without checking.
func guardComponent(name string) error {
	if name == "" {
		return errkind.ErrMaliciousFileName
	}
	if strings.ContainsAny(name, "/\\") {
		return errkind.ErrMaliciousFileName
	}
	if name == "." || name == ".." {
		return errkind.ErrMaliciousFileName
	}
	if path.IsAbs(name) {
		return errkind.ErrMaliciousFileName
	}
	return nil
}
