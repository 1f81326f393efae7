package ml

import (
	"fmt"
	"math"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Feature column names shared by training and inference. A model artifact
// records the list it was trained on and is rejected if it differs.
const (
	ColumnBMI           = "bmi"
	ColumnAgeGroup      = "age_group"
	ColumnLifestyleRisk = "lifestyle_risk"
	ColumnCityTier      = "city_tier"
	ColumnIncomeLPA     = "income_lpa"
	ColumnOccupation    = "occupation"
)

var occupations = []string{
	"retired", "freelancer", "student", "governmentjob",
	"businessowner", "unemployed", "privatejob",
}

// Occupations returns the accepted occupation values.
func Occupations() []string {
	return append([]string(nil), occupations...)
}

func IsKnownOccupation(occupation string) bool {
	for _, o := range occupations {
		if o == occupation {
			return true
		}
	}
	return false
}

// Applicant holds the raw attributes entered for one prediction.
type Applicant struct {
	Age        int     `json:"age"`
	Weight     float64 `json:"weight"`
	Height     float64 `json:"height"`
	IncomeLPA  float64 `json:"income_lpa"`
	Smoker     bool    `json:"smoker"`
	Occupation string  `json:"occupation"`
	City       string  `json:"city"`
}

// Validate checks every applicant invariant. Derive only needs the subset that
// would make derivation undefined; Validate is stricter and is used at the
// API boundary and when cleaning training data.
func (a Applicant) Validate() error {
	if a.Age < 0 || a.Age > 100 {
		return invalidInput("age must be within [0, 100], got %d", a.Age)
	}
	if !(a.Weight > 0) || math.IsInf(a.Weight, 0) {
		return invalidInput("weight must be positive, got %v", a.Weight)
	}
	if !(a.Height > 0) || math.IsInf(a.Height, 0) {
		return invalidInput("height must be positive, got %v", a.Height)
	}
	if !(a.IncomeLPA >= 0) || math.IsInf(a.IncomeLPA, 0) {
		return invalidInput("income must be non-negative, got %v", a.IncomeLPA)
	}
	if !IsKnownOccupation(a.Occupation) {
		return invalidInput("unknown occupation %q", a.Occupation)
	}
	return nil
}

// Features is the derived feature row the classifier consumes.
type Features struct {
	BMI           float64       `json:"bmi"`
	AgeGroup      AgeGroup      `json:"age_group"`
	LifestyleRisk LifestyleRisk `json:"lifestyle_risk"`
	CityTier      CityTier      `json:"city_tier"`
	IncomeLPA     float64       `json:"income_lpa"`
	Occupation    string        `json:"occupation"`
}

// Derive maps an applicant to its feature row. It is pure: identical input
// always yields identical output.
func Derive(a Applicant) (Features, error) {
	if a.Age < 0 {
		return Features{}, invalidInput("age must not be negative, got %d", a.Age)
	}
	bmi, err := CalculateBMI(a.Weight, a.Height)
	if err != nil {
		return Features{}, err
	}
	return Features{
		BMI:           bmi,
		AgeGroup:      CalculateAgeGroup(a.Age),
		LifestyleRisk: CalculateLifestyleRisk(a.Smoker, bmi),
		CityTier:      CalculateCityTier(a.City),
		IncomeLPA:     a.IncomeLPA,
		Occupation:    a.Occupation,
	}, nil
}

func FeatureNames() []string {
	return []string{
		ColumnBMI,
		ColumnAgeGroup,
		ColumnLifestyleRisk,
		ColumnCityTier,
		ColumnIncomeLPA,
		ColumnOccupation,
	}
}

// NumericColumns are passed through to the classifier unchanged.
func NumericColumns() []string {
	return []string{ColumnBMI, ColumnIncomeLPA}
}

// CategoricalColumns are one-hot encoded before reaching the classifier.
func CategoricalColumns() []string {
	return []string{ColumnAgeGroup, ColumnLifestyleRisk, ColumnCityTier, ColumnOccupation}
}

// Numeric returns the value of a passthrough column.
func (f Features) Numeric(column string) (float64, error) {
	switch column {
	case ColumnBMI:
		return f.BMI, nil
	case ColumnIncomeLPA:
		return f.IncomeLPA, nil
	}
	return 0, fmt.Errorf("%s is not a numeric column", column)
}

// Category returns the string form of a categorical column.
func (f Features) Category(column string) (string, error) {
	switch column {
	case ColumnAgeGroup:
		return string(f.AgeGroup), nil
	case ColumnLifestyleRisk:
		return string(f.LifestyleRisk), nil
	case ColumnCityTier:
		return strconv.Itoa(int(f.CityTier)), nil
	case ColumnOccupation:
		return f.Occupation, nil
	}
	return "", fmt.Errorf("%s is not a categorical column", column)
}

// Values returns the row in FeatureNames order.
func (f Features) Values() []interface{} {
	return []interface{}{
		f.BMI,
		string(f.AgeGroup),
		string(f.LifestyleRisk),
		int(f.CityTier),
		f.IncomeLPA,
		f.Occupation,
	}
}

// FeatureDisplay is the human-readable rendering of a feature row.
type FeatureDisplay struct {
	BMI           string `json:"bmi"`
	AgeGroup      string `json:"age_group"`
	LifestyleRisk string `json:"lifestyle_risk"`
	CityTier      string `json:"city_tier"`
}

func (f Features) Display() FeatureDisplay {
	title := cases.Title(language.English)
	return FeatureDisplay{
		BMI:           strconv.FormatFloat(f.BMI, 'f', 1, 64),
		AgeGroup:      title.String(string(f.AgeGroup)),
		LifestyleRisk: title.String(string(f.LifestyleRisk)),
		CityTier:      "Tier " + strconv.Itoa(int(f.CityTier)),
	}
}
