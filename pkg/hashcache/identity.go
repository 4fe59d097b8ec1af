package hashcache

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/oneconcern/hashlink/pkg/hashcache/status"
	"golang.org/x/sys/unix"
)

// Identity describes a file as observed on disk, for the purpose of validating a cached digest.
//
// The identity Policy of a cache decides which fields are compared.
type Identity struct {
	Path    string `json:"path"`
	Device  uint64 `json:"device"`
	Inode   uint64 `json:"inode"`
	ModTime int64  `json:"mtime"` // nanoseconds since epoch
	Size    int64  `json:"size"`
}

// Stat builds the identity of the file at path. The path is made absolute.
//
// Symbolic links are followed, like when the file is read for hashing.
func Stat(path string) (Identity, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Identity{}, err
	}
	var st unix.Stat_t
	if err := unix.Stat(abs, &st); err != nil {
		return Identity{}, &os.PathError{Op: "stat", Path: abs, Err: err}
	}
	return Identity{
		Path:    abs,
		Device:  uint64(st.Dev), //nolint:unconvert // int32 on darwin
		Inode:   st.Ino,
		ModTime: st.Mtim.Nano(),
		Size:    st.Size,
	}, nil
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (dev: %d, ino: %d, mtime: %d, size: %d)", id.Path, id.Device, id.Inode, id.ModTime, id.Size)
}

// Policy selects the fields that make up the cache key of an identity.
type Policy uint8

const (
	// InodeStat keys entries by (device, inode, mtime, size). Paths are unique as well:
	// storing an entry evicts any other entry for the same path or the same inode.
	InodeStat Policy = iota

	// PathStat keys entries by (path, mtime, size).
	//
	// This is cheaper but weaker: a file renamed, then restored with identical size and
	// modification time, still hits the cache.
	PathStat
)

var policyNames = map[Policy]string{
	InodeStat: "inode",
	PathStat:  "path",
}

func (p Policy) String() string {
	if n, ok := policyNames[p]; ok {
		return n
	}
	return fmt.Sprintf("policy(%d)", p)
}

// ParsePolicy maps a configuration string to a Policy
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return InodeStat, status.ErrUnknownPolicy.Wrapf("%q", name)
}

// key returns the unique key of an identity, not including the validation fields (mtime, size).
func (p Policy) key(id Identity) string {
	if p == PathStat {
		return p.keyPrefix() + id.Path
	}
	return p.keyPrefix() + strconv.FormatUint(id.Device, 10) + ":" + strconv.FormatUint(id.Inode, 10)
}

func (p Policy) keyPrefix() string {
	if p == PathStat {
		return "p:"
	}
	return "i:"
}

// matches tells if a cached identity is still valid for the observed one
func (p Policy) matches(cached, observed Identity) bool {
	if cached.ModTime != observed.ModTime || cached.Size != observed.Size {
		return false
	}
	if p == PathStat {
		return cached.Path == observed.Path
	}
	return cached.Device == observed.Device && cached.Inode == observed.Inode
}
