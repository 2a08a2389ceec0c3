// Package domain contains core concepts of the private messaging system.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is the opaque handle supplied by the identity provider.
// Its value is the unique, stable display name of the participant and
// is immutable for the lifetime of a session.
type Identity string

func (i Identity) String() string {
	return string(i)
}
