// Package domain contains pure types shared across the dispatch pipeline.
// It has zero infrastructure imports — no network, no disk, no time.Now().
package domain

// Role tags a Node as supply-capable or demand-only. A node's role is
// immutable for the lifetime of a run.
type Role uint8

const (
	RolePower Role = iota
	RoleConsumer
)

// String renders a Role for logs and JSON.
func (r Role) String() string {
	if r == RolePower {
		return "power"
	}
	return "consumer"
}

// MarshalJSON renders a Role as its string form.
func (r Role) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// NodeID identifies a physical consumer or power node, 1..255.
type NodeID uint8

// Node is one physical endpoint on the microgrid, as last observed.
type Node struct {
	ID          NodeID
	Role        Role
	Demand      float64 // amps requested, consumer nodes only
	Fulfillment float64 // amps actually delivered, as reported by the endpoint
}

// MaxNodesPerFrame bounds the node_count field of both wire frame types.
const MaxNodesPerFrame = 16
