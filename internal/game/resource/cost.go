package resource

// Cost is one (resource, amount) entry of an action's ordered cost map.
type Cost struct {
	Resource string
	Amount   float64
}

// Shortfall describes the first unaffordable cost.
type Shortfall struct {
	Resource string
	Need     float64
	Have     float64
}

// FirstShortfall checks costs in order against pools and reports the first one
// the pools cannot cover. A missing pool counts as holding zero.
//
// Postcondition: short is false when every cost is affordable; pools are never mutated.
func FirstShortfall(pools map[string]*Pool, costs []Cost) (sf Shortfall, short bool) {
	for _, c := range costs {
		p, found := pools[c.Resource]
		if !found {
			return Shortfall{Resource: c.Resource, Need: c.Amount}, true
		}
		if !p.CanAfford(c.Amount) {
			return Shortfall{Resource: c.Resource, Need: c.Amount, Have: p.Current}, true
		}
	}
	return Shortfall{}, false
}

// PayAll spends every cost as one batch. Affordability is checked first, and a
// spend that still fails (two costs draining the same pool) refunds what was
// already paid, so either all costs are paid or none are.
//
// Postcondition: When ok is false every pool holds what it held on entry.
func PayAll(pools map[string]*Pool, costs []Cost) (sf Shortfall, ok bool) {
	if sf, short := FirstShortfall(pools, costs); short {
		return sf, false
	}
	for i, c := range costs {
		p := pools[c.Resource]
		if err := p.Spend(c.Amount); err != nil {
			for _, paid := range costs[:i] {
				pools[paid.Resource].Restore(paid.Amount)
			}
			return Shortfall{Resource: c.Resource, Need: c.Amount, Have: p.Current}, false
		}
	}
	return Shortfall{}, true
}
