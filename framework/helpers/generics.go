package helpers

import "golang.org/x/exp/slices"

// CopyOf returns a shallow copy of a slice. The result is nil if the input is nil.
func CopyOf[V any](s []V) []V {
	if s == nil {
		return nil
	}
	return append([]V(nil), s...)
}

// IfElse returns valueIfTrue or valueIfFalse depending on isTrue.
func IfElse[V any](isTrue bool, valueIfTrue, valueIfFalse V) V {
	if isTrue {
		return valueIfTrue
	}
	return valueIfFalse
}

// Sorted returns a sorted copy of a slice of strings, leaving the original unchanged.
func Sorted(s []string) []string {
	ret := CopyOf(s)
	slices.Sort(ret)
	return ret
}

// LastN returns the last n elements of a slice, or the whole slice if it is shorter than n.
func LastN[V any](s []V, n int) []V {
	if n <= 0 {
		return nil
	}
	if len(s) <= n {
		return CopyOf(s)
	}
	return CopyOf(s[len(s)-n:])
}
