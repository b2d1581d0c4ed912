package types

import "github.com/hashicorp/go-version"

// ProtocolVersion is the semantic version every node advertises on its
// message headers. Comparison goes through hashicorp/go-version rather than
// a bare integer equality check, so a node accepts a peer on an older
// release of the same major version instead of rejecting it outright.
const ProtocolVersion = "1.0.0"

// CompatibleVersion reports whether the peer's advertised version can be
// handled locally: same major, peer's version no newer than ours.
func CompatibleVersion(peer string) bool {
	local, err := version.NewVersion(ProtocolVersion)
	if err != nil {
		return false
	}
	remote, err := version.NewVersion(peer)
	if err != nil {
		return false
	}
	if local.Segments()[0] != remote.Segments()[0] {
		return false
	}
	return remote.LessThanOrEqual(local)
}
