package types

import "github.com/google/uuid"

// ID identifies orders, products, drivers, routes and audit entries.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }

// IDs converts a list of raw strings.
func IDs(raw []string) []ID {
	out := make([]ID, len(raw))
	for i, s := range raw {
		out[i] = ID(s)
	}
	return out
}
