package ml

import "errors"

type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Samples   int     `json:"samples"`
	Failed    int     `json:"failed"`
}

// Evaluate scores a classifier on a labelled set. Precision and recall are
// macro-averaged over classes that occur in the set or in the predictions.
// Rows the classifier fails on count as misses.
func Evaluate(clf Classifier, set *TrainingSet) (Metrics, error) {
	if set == nil || set.Len() == 0 {
		return Metrics{}, errors.New("evaluation set is empty")
	}

	classCount := len(set.Classes)
	truePositive := make([]int, classCount)
	predicted := make([]int, classCount)
	actual := make([]int, classCount)
	index := make(map[string]int, classCount)
	for i, class := range set.Classes {
		index[class] = i
	}

	metrics := Metrics{Samples: set.Len()}
	var correct int
	for i, features := range set.Features {
		want := set.Labels[i]
		actual[want]++
		label, err := clf.Predict(features)
		if err != nil {
			metrics.Failed++
			continue
		}
		got, ok := index[label]
		if !ok {
			metrics.Failed++
			continue
		}
		predicted[got]++
		if got == want {
			correct++
			truePositive[got]++
		}
	}

	metrics.Accuracy = float64(correct) / float64(set.Len())
	var precisionSum, recallSum float64
	var classes int
	for c := 0; c < classCount; c++ {
		if predicted[c] == 0 && actual[c] == 0 {
			continue
		}
		classes++
		if predicted[c] > 0 {
			precisionSum += float64(truePositive[c]) / float64(predicted[c])
		}
		if actual[c] > 0 {
			recallSum += float64(truePositive[c]) / float64(actual[c])
		}
	}
	if classes > 0 {
		metrics.Precision = precisionSum / float64(classes)
		metrics.Recall = recallSum / float64(classes)
	}
	return metrics, nil
}
