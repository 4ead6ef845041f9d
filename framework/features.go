package framework

import "golang.org/x/exp/slices"

// Features is a list of strings describing what the supervised server has been configured to do,
// such as "tls" or "iiif". They are derived from the process configuration rather than reported by
// the server, and tests use them to skip cases that the active profile cannot serve.
type Features []string

// Has returns true if the specified string appears in the list.
func (fs Features) Has(name string) bool {
	return slices.Contains(fs, name)
}

// HasAny returns true if any of the specified strings appears in the list.
func (fs Features) HasAny(names ...string) bool {
	for _, n := range names {
		if fs.Has(n) {
			return true
		}
	}
	return false
}

// Sorted returns a sorted copy of the list.
func (fs Features) Sorted() Features {
	ret := slices.Clone(fs)
	slices.Sort(ret)
	return ret
}
