// Package address derives the location of a file in a content-addressed store.
//
// The store is sharded by the first 2 hex characters of the digest. The file name is made of the
// remaining characters, followed by all the extensions of the original file name:
//
//	address.Path("8bc36727...56bb53", "holiday.tar.gz") == "8b/c36727...56bb53.tar.gz"
package address

import (
	"path/filepath"
	"strings"
)

// ShardPrefixLen is the number of hex characters used to name shard directories
const ShardPrefixLen = 2

// Path returns the location of a file relative to the store root, given its digest and original name.
//
// It is a pure function. A digest too short to be sharded is a programming error and panics.
func Path(digest, name string) string {
	if len(digest) <= ShardPrefixLen {
		panic("address: digest too short: " + digest)
	}
	return filepath.Join(digest[:ShardPrefixLen], digest[ShardPrefixLen:]+Extensions(name))
}

// Shard returns the shard directory for a digest, relative to the store root
func Shard(digest string) string {
	if len(digest) <= ShardPrefixLen {
		panic("address: digest too short: " + digest)
	}
	return digest[:ShardPrefixLen]
}

// Extensions returns the full extension suffix of the base name of a path, e.g. ".tar.gz".
//
// Leading dots do not start an extension (".bashrc" has none), and a name ending with a dot
// has no extension at all.
func Extensions(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || strings.HasSuffix(base, ".") {
		return ""
	}
	stem := strings.TrimLeft(base, ".")
	idx := strings.IndexByte(stem, '.')
	if idx < 0 {
		return ""
	}
	return stem[idx:]
}
