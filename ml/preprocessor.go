package ml

import (
	"errors"
	"fmt"
	"sort"
)

// Encoder turns a feature row into the numeric vector the decision tree
// consumes: numeric columns first, then one indicator per known category.
type Encoder struct {
	Numeric     []string            `json:"numeric"`
	Categorical []string            `json:"categorical"`
	Categories  map[string][]string `json:"categories"`
}

// Fit learns the category vocabulary of every categorical column.
func (e *Encoder) Fit(features []Features) error {
	if len(features) == 0 {
		return errors.New("features is empty")
	}
	e.Numeric = NumericColumns()
	e.Categorical = CategoricalColumns()
	e.Categories = make(map[string][]string, len(e.Categorical))
	for _, column := range e.Categorical {
		seen := make(map[string]bool)
		for _, f := range features {
			value, err := f.Category(column)
			if err != nil {
				return err
			}
			seen[value] = true
		}
		values := make([]string, 0, len(seen))
		for value := range seen {
			values = append(values, value)
		}
		sort.Strings(values)
		e.Categories[column] = values
	}
	return nil
}

// Transform fails with ErrUnknownCategory for a value not seen during Fit.
func (e *Encoder) Transform(f Features) ([]float64, error) {
	if len(e.Categories) == 0 {
		return nil, errors.New("encoder not fitted")
	}
	vector := make([]float64, 0, e.Width())
	for _, column := range e.Numeric {
		value, err := f.Numeric(column)
		if err != nil {
			return nil, err
		}
		vector = append(vector, value)
	}
	for _, column := range e.Categorical {
		value, err := f.Category(column)
		if err != nil {
			return nil, err
		}
		known := e.Categories[column]
		idx := sort.SearchStrings(known, value)
		if idx >= len(known) || known[idx] != value {
			return nil, fmt.Errorf("%w: %s=%q", ErrUnknownCategory, column, value)
		}
		for i := range known {
			if i == idx {
				vector = append(vector, 1)
			} else {
				vector = append(vector, 0)
			}
		}
	}
	return vector, nil
}

func (e *Encoder) TransformAll(features []Features) ([][]float64, error) {
	vectors := make([][]float64, len(features))
	for i, f := range features {
		vector, err := e.Transform(f)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

// Width is the length of every encoded vector.
func (e *Encoder) Width() int {
	width := len(e.Numeric)
	for _, column := range e.Categorical {
		width += len(e.Categories[column])
	}
	return width
}

// OutputNames names each position of an encoded vector, e.g. "occupation=student".
func (e *Encoder) OutputNames() []string {
	names := make([]string, 0, e.Width())
	names = append(names, e.Numeric...)
	for _, column := range e.Categorical {
		for _, value := range e.Categories[column] {
			names = append(names, column+"="+value)
		}
	}
	return names
}
