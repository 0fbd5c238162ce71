package condition

// StatModifiers returns the net per-stat modifier contributed by all active
// conditions. Each condition contributes its StatModifiers multiplied by its
// current stack count.
//
// Postcondition: Returns a non-nil map; stats no condition touches are absent.
func StatModifiers(s *ActiveSet) map[string]int {
	out := make(map[string]int)
	for _, ac := range s.conditions {
		for stat, delta := range ac.Def.StatModifiers {
			out[stat] += delta * ac.Stacks
		}
	}
	return out
}

// StatBonus returns the net modifier for a single stat.
func StatBonus(s *ActiveSet, stat string) int {
	total := 0
	for _, ac := range s.conditions {
		total += ac.Def.StatModifiers[stat] * ac.Stacks
	}
	return total
}
