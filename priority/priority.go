// Package priority defines the four cache priority tiers and their ordering.
package priority

import "fmt"

// Priority is a cache entry's tier. The numeric value is the eviction rank:
// lower ranks are evicted first, so Low goes before Normal, and Critical last.
type Priority uint8

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// NumTiers is the number of priority tiers (handy for per-tier arrays).
const NumTiers = 4

// EvictionOrder returns the tiers in the order eviction considers them.
// Critical is included last: it is touched only when freeing every lower
// tier still cannot make room.
func EvictionOrder() [NumTiers]Priority {
	return [NumTiers]Priority{Low, Normal, High, Critical}
}

// Valid reports whether p is one of the four defined tiers.
func (p Priority) Valid() bool { return p <= Critical }

// Durable reports whether entries of this tier are written to the durable
// store and restored after a restart.
func (p Priority) Durable() bool { return p == High || p == Critical }

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// Parse converts a tier name ("low", "normal", "high", "critical") to a Priority.
func Parse(s string) (Priority, error) {
	switch s {
	case "low":
		return Low, nil
	case "normal":
		return Normal, nil
	case "high":
		return High, nil
	case "critical":
		return Critical, nil
	default:
		return Normal, fmt.Errorf("priority: unknown tier %q", s)
	}
}

// MarshalText encodes the tier as its name, so JSON snapshots stay readable.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("priority: cannot encode invalid tier %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText decodes a tier name.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
