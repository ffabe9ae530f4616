// Package permission implements the capability bitmask stored on users and groups.
package permission

import (
	"errors"
	"fmt"
)

type Permission int

const (
	ReadUsers Permission = 1 << iota
	ModifyUsers
	GrantPermissions
	RevokePermissions
	ReadThreats
	ModifyThreats
)

// All is the union of every defined capability.
const All = ReadUsers | ModifyUsers | GrantPermissions | RevokePermissions | ReadThreats | ModifyThreats

var ErrUnknownPermission = errors.New("unknown permission")

type definition struct {
	bit  Permission
	name string
}

// definitions keeps the declaration order used by Names and Expand.
var definitions = []definition{
	{ReadUsers, "read_users"},
	{ModifyUsers, "modify_users"},
	{GrantPermissions, "grant_permissions"},
	{RevokePermissions, "revoke_permissions"},
	{ReadThreats, "read_threats"},
	{ModifyThreats, "modify_threats"},
}

func (p Permission) String() string {
	for _, d := range definitions {
		if d.bit == p {
			return d.name
		}
	}
	return fmt.Sprintf("permission(%d)", int(p))
}

// Check reports whether bit is set in mask.
func Check(mask int, bit Permission) bool {
	return mask&int(bit) != 0
}

// Expand maps every defined capability name to its inclusion in mask.
// Undefined bits are ignored.
func Expand(mask int) map[string]bool {
	out := make(map[string]bool, len(definitions))
	for _, d := range definitions {
		out[d.name] = Check(mask, d.bit)
	}
	return out
}

func Names() []string {
	names := make([]string, len(definitions))
	for i, d := range definitions {
		names[i] = d.name
	}
	return names
}

func Parse(name string) (Permission, error) {
	for _, d := range definitions {
		if d.name == name {
			return d.bit, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
}

// Mask builds a mask out of capability names.
func Mask(names ...string) (int, error) {
	mask := 0
	for _, name := range names {
		p, err := Parse(name)
		if err != nil {
			return 0, err
		}
		mask |= int(p)
	}
	return mask, nil
}

// Sanitize drops bits that do not belong to a defined capability.
func Sanitize(mask int) int {
	return mask & int(All)
}

func Grant(mask, bits int) int {
	return Sanitize(mask | bits)
}

func Revoke(mask, bits int) int {
	return Sanitize(mask &^ bits)
}

// Effective combines a user's own mask with the masks of its groups.
func Effective(own int, groups ...int) int {
	mask := own
	for _, g := range groups {
		mask |= g
	}
	return Sanitize(mask)
}
