// Package version holds the node's build identity: a semantic version and
// the client name reported by the --version flag and the version command.
package version

import "fmt"

// Client names this node implementation in version output and logs.
const Client = "bitassetsd"

// Semantic is a major.minor.patch version.
type Semantic struct {
	Major int
	Minor int
	Patch int
}

func (s *Semantic) String() string {
	return fmt.Sprintf("%d.%d.%d", s.Major, s.Minor, s.Patch)
}

// Current is this build's version.
var Current = &Semantic{Major: 0, Minor: 1, Patch: 0}

// String is the full "<client>/<version>" identity string.
var String = fmt.Sprintf("%s/%s", Client, Current.String())
