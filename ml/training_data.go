package ml

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"
)

// ApplicantRecord is one row of the training dataset.
type ApplicantRecord struct {
	Age        int     `csv:"age"`
	Weight     float64 `csv:"weight"`
	Height     float64 `csv:"height"`
	IncomeLPA  float64 `csv:"income_lpa"`
	Smoker     string  `csv:"smoker"`
	City       string  `csv:"city"`
	Occupation string  `csv:"occupation"`
	Category   string  `csv:"insurance_premium_category"`
}

func (r ApplicantRecord) Applicant() (Applicant, error) {
	smoker, err := strconv.ParseBool(r.Smoker)
	if err != nil {
		return Applicant{}, invalidInput("smoker must be a boolean, got %q", r.Smoker)
	}
	return Applicant{
		Age:        r.Age,
		Weight:     r.Weight,
		Height:     r.Height,
		IncomeLPA:  r.IncomeLPA,
		Smoker:     smoker,
		Occupation: r.Occupation,
		City:       r.City,
	}, nil
}

func ReadRecords(r io.Reader) ([]*ApplicantRecord, error) {
	records := []*ApplicantRecord{}
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("parse training csv: %w", err)
	}
	return records, nil
}

func ReadRecordsFile(path string) ([]*ApplicantRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRecords(f)
}

// TrainingSet holds derived features with class indexes into Classes.
type TrainingSet struct {
	Features []Features
	Labels   []int
	Classes  []string
}

func (s *TrainingSet) Len() int {
	return len(s.Features)
}

// BuildTrainingSet derives features for every record. Records are expected to
// be cleaned already; a record that cannot be derived is an error.
func BuildTrainingSet(records []*ApplicantRecord) (*TrainingSet, error) {
	if len(records) == 0 {
		return nil, errors.New("records is empty")
	}

	classIndex := make(map[string]int)
	for _, record := range records {
		if record.Category == "" {
			return nil, errors.New("record without category")
		}
		classIndex[record.Category] = 0
	}
	classes := make([]string, 0, len(classIndex))
	for class := range classIndex {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for i, class := range classes {
		classIndex[class] = i
	}

	set := &TrainingSet{
		Features: make([]Features, 0, len(records)),
		Labels:   make([]int, 0, len(records)),
		Classes:  classes,
	}
	for i, record := range records {
		applicant, err := record.Applicant()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		features, err := Derive(applicant)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		set.Features = append(set.Features, features)
		set.Labels = append(set.Labels, classIndex[record.Category])
	}
	return set, nil
}

// SplitDataset shuffles with the given seed and holds out testRatio of the rows.
func SplitDataset(set *TrainingSet, testRatio float64, seed int64) (train, test *TrainingSet) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	rnd := rand.New(rand.NewSource(seed))
	indices := rnd.Perm(set.Len())

	split := int(float64(set.Len()) * (1 - testRatio))
	train = &TrainingSet{Classes: set.Classes}
	test = &TrainingSet{Classes: set.Classes}
	for i, idx := range indices {
		target := test
		if i < split {
			target = train
		}
		target.Features = append(target.Features, set.Features[idx])
		target.Labels = append(target.Labels, set.Labels[idx])
	}
	return train, test
}
