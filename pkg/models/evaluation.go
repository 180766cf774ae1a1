package models

// StabilityReport is the Recommendation Stability Score (RSS) result
type StabilityReport struct {
	BaselineLabel     string         `json:"baseline_crop"`
	NoisePercentage   float64        `json:"noise_percentage"`
	TotalRuns         int            `json:"total_runs"`
	Matches           int            `json:"matches"`
	PredictionChanges int            `json:"prediction_changes"`
	RSS               float64        `json:"rss"`
	Distribution      map[string]int `json:"prediction_distribution"`
}

// FeatureOutcome is the classifier result on one input
type FeatureOutcome struct {
	Label       string  `json:"crop"`
	Probability float64 `json:"probability"`
}

// MissingFeatureOutcome is the classifier result with one feature replaced by its default
type MissingFeatureOutcome struct {
	Label            string  `json:"crop"`
	Probability      float64 `json:"probability"`
	Changed          bool    `json:"changed"`
	ProbabilityDrop  float64 `json:"probability_drop"` // negative when the probability rose
	SubstitutedValue float64 `json:"substituted_value"`
}

// MissingFeatureReport summarizes the missing-feature sweep
type MissingFeatureReport struct {
	Baseline       FeatureOutcome                    `json:"baseline"`
	PerFeature     map[Feature]MissingFeatureOutcome `json:"feature_results"`
	TestedCount    int                               `json:"total_tests"`
	ChangedCount   int                               `json:"prediction_changes"`
	StabilityScore float64                           `json:"stability_score"`
}

// AgreementReport tallies which crop each registered model prefers
type AgreementReport struct {
	Predictions    map[string]string `json:"predictions"`
	MajorityLabel  string            `json:"most_common_crop"`
	MajorityCount  int               `json:"agreement_count"`
	TotalModels    int               `json:"total_models"`
	AgreementRatio float64           `json:"agreement_ratio"`
	AllAgree       bool              `json:"all_agree"`
	Distribution   map[string]int    `json:"prediction_distribution"`
	Error          string            `json:"error,omitempty"` // set only when no model is available
}

// Failed reports whether the report is the no-models sentinel
func (r *AgreementReport) Failed() bool {
	return r.Error != ""
}

// AgreementStabilityReport tracks whether the ensemble majority survives input noise
type AgreementStabilityReport struct {
	BaselineLabel          string  `json:"baseline_crop"`
	BaselineAgreement      float64 `json:"baseline_agreement"`
	AvgAgreementUnderNoise float64 `json:"avg_agreement_under_noise"`
	StabilityScore         float64 `json:"stability_score"`
	StablePredictions      int     `json:"stable_predictions"`
	TotalRuns              int     `json:"total_runs"`
}

// ConfidenceLevel is the human-readable band of a confidence score
type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "Very Low"
	ConfidenceLow      ConfidenceLevel = "Low"
	ConfidenceMedium   ConfidenceLevel = "Medium"
	ConfidenceHigh     ConfidenceLevel = "High"
	ConfidenceVeryHigh ConfidenceLevel = "Very High"
)

// ConfidenceWeights are the fusion weights per component
type ConfidenceWeights struct {
	Probability float64 `json:"probability"`
	Stability   float64 `json:"stability"`
	Agreement   float64 `json:"agreement"`
}

// ConfidenceComponents holds the component scores; nil means not computed
type ConfidenceComponents struct {
	Probability float64  `json:"probability"`
	Stability   *float64 `json:"stability"`
	Agreement   *float64 `json:"agreement"`
}

// ConfidenceReport is the fused confidence for one recommendation
type ConfidenceReport struct {
	Label      string               `json:"crop"`
	Confidence float64              `json:"confidence"`
	Level      ConfidenceLevel      `json:"confidence_level"`
	Components ConfidenceComponents `json:"components"`
	Weights    ConfidenceWeights    `json:"weights"`
}

// FullReport combines every analysis run on one input
type FullReport struct {
	PredictedCrop           string                `json:"predicted_crop"`
	Confidence              float64               `json:"confidence"`
	ConfidenceLevel         ConfidenceLevel       `json:"confidence_level"`
	RSSScore                float64               `json:"rss_score"`
	MissingFeatureStability float64               `json:"missing_feature_stability"`
	ModelAgreementRatio     float64               `json:"model_agreement_ratio"`
	NoiseTest               *StabilityReport      `json:"noise_test"`
	MissingFeatureTest      *MissingFeatureReport `json:"missing_feature_test"`
	AgreementTest           *AgreementReport      `json:"model_agreement_test"`
	ConfidenceDetail        *ConfidenceReport     `json:"confidence_detail"`
}
