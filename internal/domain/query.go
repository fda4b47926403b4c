package domain

// AdminQuery asks the registry whether an identity mask is configured as an
// admin on a network. Reply must be buffered (capacity 1) so the registry's
// single answer never blocks, even when the asker has already given up.
type AdminQuery struct {
	Network string
	Mask    string
	Reply   chan bool
}

// NewAdminQuery builds a query with a correctly sized reply channel.
func NewAdminQuery(network, mask string) AdminQuery {
	return AdminQuery{
		Network: network,
		Mask:    mask,
		Reply:   make(chan bool, 1),
	}
}
