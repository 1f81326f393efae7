package ml

import "math"

type AgeGroup string

const (
	AgeGroupYoung      AgeGroup = "young"
	AgeGroupAdult      AgeGroup = "adult"
	AgeGroupMiddleAged AgeGroup = "middleaged"
	AgeGroupSenior     AgeGroup = "senior"
)

type LifestyleRisk string

const (
	LifestyleRiskLow    LifestyleRisk = "low"
	LifestyleRiskMedium LifestyleRisk = "medium"
	LifestyleRiskHigh   LifestyleRisk = "high"
)

type CityTier int

const (
	CityTier1 CityTier = 1
	CityTier2 CityTier = 2
	CityTier3 CityTier = 3
)

const (
	smokerObeseBMI = 30.0
	overweightBMI  = 27.0
)

// CalculateAgeGroup buckets an age. Each bucket is closed on its lower bound.
func CalculateAgeGroup(age int) AgeGroup {
	switch {
	case age < 25:
		return AgeGroupYoung
	case age < 45:
		return AgeGroupAdult
	case age < 60:
		return AgeGroupMiddleAged
	default:
		return AgeGroupSenior
	}
}

// CalculateBMI returns weight / height². Height must be positive and finite.
func CalculateBMI(weight, height float64) (float64, error) {
	if height <= 0 || math.IsNaN(height) || math.IsInf(height, 0) {
		return 0, invalidInput("height must be positive, got %v", height)
	}
	return weight / (height * height), nil
}

// CalculateLifestyleRisk keeps the smoker-and-obese rule ahead of the broader
// smoker-or-overweight rule; new rules must be inserted in precedence order.
func CalculateLifestyleRisk(smoker bool, bmi float64) LifestyleRisk {
	if smoker && bmi >= smokerObeseBMI {
		return LifestyleRiskHigh
	}
	if smoker || bmi >= overweightBMI {
		return LifestyleRiskMedium
	}
	return LifestyleRiskLow
}

// CalculateCityTier is an exact, case-sensitive lookup.
func CalculateCityTier(city string) CityTier {
	if _, ok := tier1Set[city]; ok {
		return CityTier1
	}
	if _, ok := tier2Set[city]; ok {
		return CityTier2
	}
	return CityTier3
}
