package models

import "fmt"

// ModelTier represents an abstract capability tier. Tiers are ordered:
// TierLarge is strictly more capable and costlier than TierMedium, which is
// strictly more capable and costlier than TierSmall.
type ModelTier int

const (
	TierSmall ModelTier = iota
	TierMedium
	TierLarge
)

func (t ModelTier) String() string {
	switch t {
	case TierSmall:
		return "small"
	case TierMedium:
		return "medium"
	case TierLarge:
		return "large"
	default:
		return fmt.Sprintf("Unknown(%d)", int(t))
	}
}

// Next returns the next higher tier. The second return value is false when
// the tier is already TierLarge.
func (t ModelTier) Next() (ModelTier, bool) {
	if t >= TierLarge {
		return TierLarge, false
	}
	return t + 1, true
}

// ParseTier maps a tier name to its ModelTier.
func ParseTier(name string) (ModelTier, error) {
	switch name {
	case "small":
		return TierSmall, nil
	case "medium":
		return TierMedium, nil
	case "large":
		return TierLarge, nil
	default:
		return TierSmall, fmt.Errorf("unknown tier %q", name)
	}
}

// AllTiers lists the tiers in ascending capability order.
func AllTiers() []ModelTier {
	return []ModelTier{TierSmall, TierMedium, TierLarge}
}
