package threshold

import (
	"fmt"
	"strings"
)

// Kind identifies which metric a group samples.
type Kind int

const (
	// FloorPrice is the lowest listed price of an NFT collection.
	FloorPrice Kind = iota + 1
	// SpotPrice is the market price of a fungible token.
	SpotPrice
	// FeedPrice is the latest answer of an on-chain price oracle.
	FeedPrice
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{FloorPrice, SpotPrice, FeedPrice}

// Label is the short tag used in notification text.
func (k Kind) Label() string {
	switch k {
	case FloorPrice:
		return "FP"
	case SpotPrice:
		return "PRICE"
	case FeedPrice:
		return "FEED"
	default:
		return "UNKNOWN"
	}
}

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case FloorPrice:
		return "floor_price"
	case SpotPrice:
		return "spot_price"
	case FeedPrice:
		return "feed_price"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= FloorPrice && k <= FeedPrice
}

// ParseKind maps a configuration name onto a Kind.
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, k := range Kinds {
		if k.String() == normalized {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", name)
}
