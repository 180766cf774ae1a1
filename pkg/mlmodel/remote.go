package mlmodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mimir-aip/cropwise/pkg/models"
)

// DefaultRemoteTimeout bounds a single call to a model server
const DefaultRemoteTimeout = 5 * time.Second

// RemoteClassifier calls an external model server over HTTP
type RemoteClassifier struct {
	name    string
	baseURL string
	client  *http.Client
}

type remotePrediction struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// NewRemoteClassifier creates a client for the model server at baseURL
func NewRemoteClassifier(name, baseURL string, timeout time.Duration) *RemoteClassifier {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteClassifier{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *RemoteClassifier) Name() string { return c.name }

// Health checks that the model server answers GET {baseURL}/health with 200
func (c *RemoteClassifier) Health() error {
	resp, err := c.client.Get(c.baseURL + "/health")
	if err != nil {
		return models.NewUpstreamFault("remote health "+c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.NewUpstreamFault("remote health "+c.name, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	return nil
}

// Predict posts the feature vector to {baseURL}/predict
func (c *RemoteClassifier) Predict(v models.FeatureVector) (*models.PredictionResult, error) {
	op := "remote predict " + c.name

	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	resp, err := c.client.Post(c.baseURL+"/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, models.NewUpstreamFault(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, models.NewUpstreamFault(op, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var pred remotePrediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, models.NewUpstreamFault(op, fmt.Errorf("error decoding response: %w", err))
	}

	scores := pred.Probabilities
	if len(scores) == 0 {
		if pred.Label == "" {
			return nil, models.NewUpstreamFault(op, fmt.Errorf("response has no label"))
		}
		scores = map[string]float64{pred.Label: 1}
	}

	res, err := models.NewPredictionResult(scores, models.DefaultTopK)
	if err != nil {
		return nil, models.NewUpstreamFault(op, err)
	}
	return res, nil
}
