package cuapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Version is a parsed Central Unit firmware version
type Version struct {
	Major    int
	Minor    int
	Revision int
	Build    int
}

// units running at least this firmware expose the WebSocket RPC socket
var minWsRPCVersion = Version{Major: 1, Minor: 4, Revision: 9}

// ParseVersion parses a firmware string of up to four dot separated
// components (major.minor.revision.build); missing components are zero
func ParseVersion(s string) (Version, error) {
	var v Version

	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || len(parts) > 4 {
		return v, fmt.Errorf("bad firmware version: [%s]", s)
	}

	fields := []*int{&v.Major, &v.Minor, &v.Revision, &v.Build}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, errors.Wrapf(err, "bad firmware version: [%s]", s)
		}
		*fields[i] = n
	}

	return v, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Revision, v.Build)
}

func (v Version) AtLeast(o Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	if v.Revision != o.Revision {
		return v.Revision > o.Revision
	}
	return v.Build >= o.Build
}

// SupportsWsRPC reports whether a unit running the given firmware accepts
// WebSocket RPC connections; callers use it to pick a transport
func SupportsWsRPC(firmware string) bool {
	v, err := ParseVersion(firmware)
	if err != nil {
		return false
	}
	return v.AtLeast(minWsRPCVersion)
}
