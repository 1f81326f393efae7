package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateAgeGroupBoundaries(t *testing.T) {
	cases := []struct {
		age  int
		want AgeGroup
	}{
		{0, AgeGroupYoung},
		{24, AgeGroupYoung},
		{25, AgeGroupAdult},
		{44, AgeGroupAdult},
		{45, AgeGroupMiddleAged},
		{59, AgeGroupMiddleAged},
		{60, AgeGroupSenior},
		{120, AgeGroupSenior},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CalculateAgeGroup(tc.age), "age %d", tc.age)
	}
}

func TestCalculateAgeGroupPartitionsRange(t *testing.T) {
	valid := map[AgeGroup]bool{
		AgeGroupYoung: true, AgeGroupAdult: true, AgeGroupMiddleAged: true, AgeGroupSenior: true,
	}
	order := map[AgeGroup]int{AgeGroupYoung: 0, AgeGroupAdult: 1, AgeGroupMiddleAged: 2, AgeGroupSenior: 3}
	prev := AgeGroupYoung
	for age := 0; age <= 120; age++ {
		group := CalculateAgeGroup(age)
		require.True(t, valid[group], "age %d mapped to %q", age, group)
		require.GreaterOrEqual(t, order[group], order[prev], "buckets must not go backwards at age %d", age)
		prev = group
	}
}

func TestCalculateBMI(t *testing.T) {
	bmi, err := CalculateBMI(70, 1.75)
	require.NoError(t, err)
	assert.InDelta(t, 22.857, bmi, 0.0005)

	for _, height := range []float64{0, -1.7, math.NaN(), math.Inf(1)} {
		_, err := CalculateBMI(70, height)
		assert.ErrorIs(t, err, ErrInvalidInput, "height %v", height)
	}
}

func TestCalculateLifestyleRisk(t *testing.T) {
	assert.Equal(t, LifestyleRiskHigh, CalculateLifestyleRisk(true, 31))
	assert.Equal(t, LifestyleRiskHigh, CalculateLifestyleRisk(true, 30))
	assert.Equal(t, LifestyleRiskMedium, CalculateLifestyleRisk(true, 26))
	assert.Equal(t, LifestyleRiskMedium, CalculateLifestyleRisk(false, 28))
	assert.Equal(t, LifestyleRiskMedium, CalculateLifestyleRisk(false, 27))
	assert.Equal(t, LifestyleRiskMedium, CalculateLifestyleRisk(false, 35))
	assert.Equal(t, LifestyleRiskLow, CalculateLifestyleRisk(false, 20))
	assert.Equal(t, LifestyleRiskLow, CalculateLifestyleRisk(false, 26.99))
}

func TestCalculateCityTier(t *testing.T) {
	assert.Equal(t, CityTier1, CalculateCityTier("Mumbai"))
	assert.Equal(t, CityTier2, CalculateCityTier("Jaipur"))
	assert.Equal(t, CityTier2, CalculateCityTier("Siliguri"))
	assert.Equal(t, CityTier3, CalculateCityTier("Springfield"))
	// exact match only
	assert.Equal(t, CityTier3, CalculateCityTier("mumbai"))
	assert.Equal(t, CityTier3, CalculateCityTier(" Mumbai"))
	assert.Equal(t, CityTier3, CalculateCityTier(""))
}

func TestCityTables(t *testing.T) {
	assert.Len(t, Tier1Cities(), 7)
	assert.Len(t, Tier2Cities(), 48)
	for _, city := range Tier1Cities() {
		_, dup := tier2Set[city]
		assert.False(t, dup, "%s is in both tiers", city)
	}
	assert.Len(t, KnownCities(), 55)

	// callers get copies
	cities := Tier1Cities()
	cities[0] = "Springfield"
	assert.Equal(t, CityTier1, CalculateCityTier("Mumbai"))
}

func TestDerive(t *testing.T) {
	applicant := Applicant{
		Age:        30,
		Weight:     65,
		Height:     1.7,
		IncomeLPA:  5.0,
		Smoker:     false,
		Occupation: "privatejob",
		City:       "Mumbai",
	}
	features, err := Derive(applicant)
	require.NoError(t, err)
	assert.InDelta(t, 22.49, features.BMI, 0.005)
	assert.Equal(t, AgeGroupAdult, features.AgeGroup)
	assert.Equal(t, LifestyleRiskLow, features.LifestyleRisk)
	assert.Equal(t, CityTier1, features.CityTier)
	assert.Equal(t, 5.0, features.IncomeLPA)
	assert.Equal(t, "privatejob", features.Occupation)

	again, err := Derive(applicant)
	require.NoError(t, err)
	assert.Equal(t, features, again)
	assert.Equal(t, math.Float64bits(features.BMI), math.Float64bits(again.BMI))
}

func TestDeriveInvalidInput(t *testing.T) {
	base := Applicant{Age: 30, Weight: 65, Height: 1.7, Occupation: "student", City: "Delhi"}

	for _, weight := range []float64{-10, 0, 65, 500} {
		for _, height := range []float64{0, -1.7} {
			a := base
			a.Weight = weight
			a.Height = height
			features, err := Derive(a)
			assert.True(t, errors.Is(err, ErrInvalidInput), "weight %v height %v", weight, height)
			assert.Equal(t, Features{}, features)
		}
	}

	a := base
	a.Age = -1
	_, err := Derive(a)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestApplicantValidate(t *testing.T) {
	valid := Applicant{Age: 30, Weight: 65, Height: 1.7, IncomeLPA: 0, Occupation: "retired", City: "Nowhere"}
	assert.NoError(t, valid.Validate())

	mutations := map[string]func(a *Applicant){
		"age too high":       func(a *Applicant) { a.Age = 101 },
		"negative age":       func(a *Applicant) { a.Age = -3 },
		"zero weight":        func(a *Applicant) { a.Weight = 0 },
		"nan weight":         func(a *Applicant) { a.Weight = math.NaN() },
		"zero height":        func(a *Applicant) { a.Height = 0 },
		"negative income":    func(a *Applicant) { a.IncomeLPA = -1 },
		"unknown occupation": func(a *Applicant) { a.Occupation = "astronaut" },
	}
	for name, mutate := range mutations {
		a := valid
		mutate(&a)
		assert.ErrorIs(t, a.Validate(), ErrInvalidInput, name)
	}
}

func TestFeatureNamesMatchValues(t *testing.T) {
	features := Features{BMI: 22, AgeGroup: AgeGroupAdult, LifestyleRisk: LifestyleRiskLow, CityTier: CityTier2, IncomeLPA: 4, Occupation: "student"}
	names := FeatureNames()
	values := features.Values()
	require.Len(t, values, len(names))
	assert.Equal(t, []string{"bmi", "age_group", "lifestyle_risk", "city_tier", "income_lpa", "occupation"}, names)
	assert.Equal(t, "adult", values[1])
	assert.Equal(t, 2, values[3])

	assert.ElementsMatch(t, names, append(NumericColumns(), CategoricalColumns()...))
}

func TestFeaturesDisplay(t *testing.T) {
	features := Features{BMI: 22.4913, AgeGroup: AgeGroupMiddleAged, LifestyleRisk: LifestyleRiskHigh, CityTier: CityTier3}
	display := features.Display()
	assert.Equal(t, "22.5", display.BMI)
	assert.Equal(t, "Middleaged", display.AgeGroup)
	assert.Equal(t, "High", display.LifestyleRisk)
	assert.Equal(t, "Tier 3", display.CityTier)
}
