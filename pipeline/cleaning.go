// Package pipeline cleans raw training rows before features are derived.
package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"premiumcat/ml"
)

// CleaningRule either returns a (possibly corrected) record or rejects it.
type CleaningRule interface {
	Apply(*ml.ApplicantRecord) (*ml.ApplicantRecord, error)
	Name() string
}

// QualityIssue describes why a row was rejected.
type QualityIssue struct {
	Rule      string    `json:"rule"`
	Row       int       `json:"row"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DataCleaner applies every rule to every row.
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	mu     sync.RWMutex
	issues []QualityIssue
	stats  CleaningStats
}

type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// NewDataCleaner returns a cleaner with the default rule set.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger,
		issues: make([]QualityIssue, 0),
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	// whitespace correction must run before validation
	cleaner.AddRule(NewTrimSpaceRule())
	cleaner.AddRule(NewSmokerFlagRule())
	cleaner.AddRule(NewApplicantValidationRule())
	cleaner.AddRule(NewCategoryRule())
	cleaner.AddRule(NewDuplicateDetectionRule())

	return cleaner
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean returns the rows that passed every rule and the issues of the rest.
// Input records are never modified.
func (dc *DataCleaner) Clean(records []*ml.ApplicantRecord) ([]*ml.ApplicantRecord, []QualityIssue) {
	var cleaned []*ml.ApplicantRecord
	var issues []QualityIssue

	dc.mu.Lock()
	defer dc.mu.Unlock()

	for row, original := range records {
		dc.stats.TotalProcessed++

		record := original
		var rowIssue *QualityIssue
		for _, rule := range dc.rules {
			next, err := rule.Apply(record)
			if err != nil {
				rowIssue = &QualityIssue{
					Rule:      rule.Name(),
					Row:       row,
					Message:   err.Error(),
					Timestamp: time.Now(),
				}
				break
			}
			if next != nil {
				record = next
			}
		}

		if rowIssue != nil {
			dc.stats.Rejected++
			dc.stats.Issues[rowIssue.Rule]++
			issues = append(issues, *rowIssue)
			dc.issues = append(dc.issues, *rowIssue)
			continue
		}
		if *record != *original {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		cleaned = append(cleaned, record)
	}

	dc.stats.LastClean = time.Now()
	dc.logger.Info("cleaned training rows",
		zap.Int("rows", len(records)),
		zap.Int("passed", len(cleaned)),
		zap.Int("rejected", len(issues)))

	return cleaned, issues
}

func (dc *DataCleaner) GetStats() CleaningStats {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// GetIssues returns the most recent issues, at most limit (all if limit <= 0).
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}

	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

func (dc *DataCleaner) ClearIssues() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.issues = make([]QualityIssue, 0)
}

// TrimSpaceRule strips surrounding whitespace from text columns. City names
// are otherwise kept verbatim: tier lookup is exact.
type TrimSpaceRule struct{}

func NewTrimSpaceRule() *TrimSpaceRule {
	return &TrimSpaceRule{}
}

func (r *TrimSpaceRule) Name() string {
	return "trim_space"
}

func (r *TrimSpaceRule) Apply(record *ml.ApplicantRecord) (*ml.ApplicantRecord, error) {
	trimmed := *record
	trimmed.City = strings.TrimSpace(record.City)
	trimmed.Occupation = strings.TrimSpace(record.Occupation)
	trimmed.Smoker = strings.TrimSpace(record.Smoker)
	trimmed.Category = strings.TrimSpace(record.Category)
	if trimmed == *record {
		return record, nil
	}
	return &trimmed, nil
}

type SmokerFlagRule struct{}

func NewSmokerFlagRule() *SmokerFlagRule {
	return &SmokerFlagRule{}
}

func (r *SmokerFlagRule) Name() string {
	return "smoker_flag"
}

func (r *SmokerFlagRule) Apply(record *ml.ApplicantRecord) (*ml.ApplicantRecord, error) {
	if _, err := record.Applicant(); err != nil {
		return nil, err
	}
	return record, nil
}

// ApplicantValidationRule rejects rows that break an applicant invariant.
type ApplicantValidationRule struct{}

func NewApplicantValidationRule() *ApplicantValidationRule {
	return &ApplicantValidationRule{}
}

func (r *ApplicantValidationRule) Name() string {
	return "applicant_validation"
}

func (r *ApplicantValidationRule) Apply(record *ml.ApplicantRecord) (*ml.ApplicantRecord, error) {
	applicant, err := record.Applicant()
	if err != nil {
		return nil, err
	}
	if err := applicant.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// CategoryRule requires a label, restricted to Allowed when it is non-empty.
type CategoryRule struct {
	Allowed []string
}

func NewCategoryRule() *CategoryRule {
	return &CategoryRule{Allowed: []string{"Low", "Medium", "High"}}
}

func (r *CategoryRule) Name() string {
	return "category"
}

func (r *CategoryRule) Apply(record *ml.ApplicantRecord) (*ml.ApplicantRecord, error) {
	if record.Category == "" {
		return nil, fmt.Errorf("missing premium category")
	}
	if len(r.Allowed) == 0 {
		return record, nil
	}
	for _, allowed := range r.Allowed {
		if record.Category == allowed {
			return record, nil
		}
	}
	return nil, fmt.Errorf("premium category %q not in %v", record.Category, r.Allowed)
}

// DuplicateDetectionRule rejects rows identical to one seen earlier.
type DuplicateDetectionRule struct {
	seenMap map[ml.ApplicantRecord]struct{}
	mu      sync.Mutex
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{
		seenMap: make(map[ml.ApplicantRecord]struct{}),
	}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(record *ml.ApplicantRecord) (*ml.ApplicantRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.seenMap[*record]; ok {
		return nil, fmt.Errorf("duplicate row")
	}
	r.seenMap[*record] = struct{}{}
	return record, nil
}

// Reset forgets every row seen so far.
func (r *DuplicateDetectionRule) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seenMap = make(map[ml.ApplicantRecord]struct{})
}
