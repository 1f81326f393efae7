package ml

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `age,weight,height,income_lpa,smoker,city,occupation,insurance_premium_category
67,119.8,1.56,2.92,False,Jaipur,retired,High
36,114.8,1.8,1.34,True,Chennai,freelancer,Medium
39,64.1,1.79,7.12,False,Mumbai,privatejob,Low
24,49.8,1.66,1.2,False,Siliguri,student,Low
`

func TestReadRecords(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 4)

	first := records[0]
	assert.Equal(t, 67, first.Age)
	assert.Equal(t, 119.8, first.Weight)
	assert.Equal(t, "Jaipur", first.City)
	assert.Equal(t, "High", first.Category)

	applicant, err := records[1].Applicant()
	require.NoError(t, err)
	assert.True(t, applicant.Smoker)
	assert.Equal(t, "freelancer", applicant.Occupation)
}

func TestRecordApplicantBadSmoker(t *testing.T) {
	record := ApplicantRecord{Age: 30, Weight: 60, Height: 1.7, Smoker: "maybe", Occupation: "student"}
	_, err := record.Applicant()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildTrainingSet(t *testing.T) {
	records, err := ReadRecords(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	set, err := BuildTrainingSet(records)
	require.NoError(t, err)
	assert.Equal(t, []string{"High", "Low", "Medium"}, set.Classes)
	assert.Equal(t, []int{0, 2, 1, 1}, set.Labels)
	assert.Equal(t, AgeGroupSenior, set.Features[0].AgeGroup)
	assert.Equal(t, CityTier2, set.Features[0].CityTier)
	assert.Equal(t, LifestyleRiskHigh, set.Features[1].LifestyleRisk)
}

func TestBuildTrainingSetRejectsBadRows(t *testing.T) {
	_, err := BuildTrainingSet(nil)
	assert.Error(t, err)

	_, err = BuildTrainingSet([]*ApplicantRecord{{Age: 30, Weight: 60, Height: 0, Smoker: "false", Occupation: "student", Category: "Low"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = BuildTrainingSet([]*ApplicantRecord{{Age: 30, Weight: 60, Height: 1.7, Smoker: "false", Occupation: "student"}})
	assert.Error(t, err)
}

func TestSplitDataset(t *testing.T) {
	set := &TrainingSet{Classes: []string{"Low", "High"}}
	for i := 0; i < 10; i++ {
		set.Features = append(set.Features, Features{IncomeLPA: float64(i)})
		set.Labels = append(set.Labels, i%2)
	}

	train, test := SplitDataset(set, 0.3, 42)
	assert.Equal(t, 7, train.Len())
	assert.Equal(t, 3, test.Len())
	assert.Equal(t, set.Classes, train.Classes)

	seen := make(map[float64]bool)
	for _, part := range []*TrainingSet{train, test} {
		for i, f := range part.Features {
			assert.False(t, seen[f.IncomeLPA], "row %v appears twice", f.IncomeLPA)
			seen[f.IncomeLPA] = true
			assert.Equal(t, int(f.IncomeLPA)%2, part.Labels[i])
		}
	}

	again, _ := SplitDataset(set, 0.3, 42)
	assert.Equal(t, train.Features, again.Features)
}

// syntheticRecords generates a dataset whose category follows the lifestyle risk.
func syntheticRecords(n int) []*ApplicantRecord {
	occupations := Occupations()
	cities := []string{"Mumbai", "Jaipur", "Springfield"}
	records := make([]*ApplicantRecord, 0, n)
	for i := 0; i < n; i++ {
		smoker := i%3 == 0
		weight := 55.0 + float64(i%5)*12
		record := &ApplicantRecord{
			Age:        18 + (i*7)%70,
			Weight:     weight,
			Height:     1.7,
			IncomeLPA:  float64(i%10) + 0.5,
			Smoker:     fmt.Sprint(smoker),
			City:       cities[i%len(cities)],
			Occupation: occupations[i%len(occupations)],
		}
		applicant, _ := record.Applicant()
		features, _ := Derive(applicant)
		switch features.LifestyleRisk {
		case LifestyleRiskHigh:
			record.Category = "High"
		case LifestyleRiskMedium:
			record.Category = "Medium"
		default:
			record.Category = "Low"
		}
		records = append(records, record)
	}
	return records
}

func TestEvaluate(t *testing.T) {
	set, err := BuildTrainingSet(syntheticRecords(120))
	require.NoError(t, err)

	model, err := TrainModel(set, TreeOptions{MaxDepth: 6})
	require.NoError(t, err)

	metrics, err := Evaluate(model, set)
	require.NoError(t, err)
	assert.Equal(t, 120, metrics.Samples)
	assert.Zero(t, metrics.Failed)
	assert.InDelta(t, 1.0, metrics.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, metrics.Precision, 1e-9)
	assert.InDelta(t, 1.0, metrics.Recall, 1e-9)

	_, err = Evaluate(model, &TrainingSet{})
	assert.Error(t, err)
}
