package ml

import "sort"

var tier1Cities = []string{
	"Mumbai", "Delhi", "Bangalore", "Chennai", "Kolkata", "Hyderabad", "Pune",
}

var tier2Cities = []string{
	"Jaipur", "Chandigarh", "Indore", "Lucknow", "Patna", "Ranchi", "Visakhapatnam",
	"Coimbatore", "Bhopal", "Nagpur", "Vadodara", "Surat", "Rajkot", "Jodhpur",
	"Raipur", "Amritsar", "Varanasi", "Agra", "Dehradun", "Mysore", "Jabalpur",
	"Guwahati", "Thiruvananthapuram", "Ludhiana", "Nashik", "Allahabad", "Udaipur",
	"Aurangabad", "Hubli", "Belgaum", "Salem", "Vijayawada", "Tiruchirappalli",
	"Bhavnagar", "Gwalior", "Dhanbad", "Bareilly", "Aligarh", "Gaya", "Kozhikode",
	"Warangal", "Kolhapur", "Bilaspur", "Jalandhar", "Noida", "Guntur", "Asansol", "Siliguri",
}

// Built once at package init and never mutated afterwards.
var (
	tier1Set = toSet(tier1Cities)
	tier2Set = toSet(tier2Cities)
)

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Tier1Cities returns a copy of the tier 1 city list in its canonical order.
func Tier1Cities() []string {
	return append([]string(nil), tier1Cities...)
}

// Tier2Cities returns a copy of the tier 2 city list in its canonical order.
func Tier2Cities() []string {
	return append([]string(nil), tier2Cities...)
}

// KnownCities returns every tier 1 and tier 2 city, sorted.
func KnownCities() []string {
	cities := make([]string, 0, len(tier1Cities)+len(tier2Cities))
	cities = append(cities, tier1Cities...)
	cities = append(cities, tier2Cities...)
	sort.Strings(cities)
	return cities
}
