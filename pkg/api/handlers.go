package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/mimir-aip/cropwise/pkg/evaluation"
	"github.com/mimir-aip/cropwise/pkg/history"
	"github.com/mimir-aip/cropwise/pkg/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}
	resp, err := s.deps.Auth.Register(r.Context(), &req)
	if err != nil {
		s.writeFault(w, r, "register", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, resp)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}
	resp, err := s.deps.Auth.Login(r.Context(), &req)
	if err != nil {
		s.writeFault(w, r, "login", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if len(location) < 2 {
		writeBadRequestResponse(w, "location query parameter is required")
		return
	}
	writeJSONResponse(w, http.StatusOK, s.deps.Weather.Current(r.Context(), location))
}

func (s *Server) handlePredictCrop(w http.ResponseWriter, r *http.Request) {
	var req models.CropPredictionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}
	resp, err := s.deps.Predictor.Recommend(r.Context(), &req)
	if err != nil {
		s.writeFault(w, r, "crop prediction", err)
		return
	}
	s.record(r, models.HistoryPrediction, req, resp)
	writeJSONResponse(w, http.StatusOK, resp)
}

// evaluationInput is stored as the input of an evaluation history entry
type evaluationInput struct {
	Request  models.EvaluationRequest `json:"request"`
	Weather  models.Weather           `json:"weather"`
	Features models.FeatureVector     `json:"features"`
}

// evaluate decodes the request, resolves its feature vector and runs fn.
// Successful results are written and recorded under kind.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request, kind models.HistoryKind, fn func(context.Context, models.FeatureVector, *models.EvaluationRequest) (any, error)) {
	var req models.EvaluationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	v, weather, err := s.deps.Predictor.FeaturesFor(r.Context(), &req)
	if err != nil {
		s.writeFault(w, r, string(kind)+" evaluation", err)
		return
	}

	result, err := fn(r.Context(), v, &req)
	if err != nil {
		s.writeFault(w, r, string(kind)+" evaluation", err)
		return
	}

	s.record(r, kind, evaluationInput{Request: req, Weather: weather, Features: v}, result)
	writeJSONResponse(w, http.StatusOK, result)
}

func (s *Server) handleEvaluateNoise(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, models.HistoryNoise, func(ctx context.Context, v models.FeatureVector, req *models.EvaluationRequest) (any, error) {
		return s.deps.Runner.EvaluateNoise(ctx, v, noiseParams(req))
	})
}

func (s *Server) handleEvaluateNoiseLevels(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, models.HistoryNoise, func(ctx context.Context, v models.FeatureVector, req *models.EvaluationRequest) (any, error) {
		runs := models.DefaultRunsPerLevel
		if req.NumRuns != nil {
			runs = *req.NumRuns
		}
		reports, err := s.deps.Runner.EvaluateNoiseLevels(ctx, v, req.Levels, runs)
		if err != nil {
			return nil, err
		}
		return map[string]any{"levels": reports}, nil
	})
}

func (s *Server) handleEvaluateMissing(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, models.HistoryMissing, func(ctx context.Context, v models.FeatureVector, _ *models.EvaluationRequest) (any, error) {
		return s.deps.Runner.EvaluateMissing(ctx, v)
	})
}

func (s *Server) handleEvaluateAgreement(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, models.HistoryAgreement, func(ctx context.Context, v models.FeatureVector, _ *models.EvaluationRequest) (any, error) {
		return s.deps.Runner.EvaluateAgreement(ctx, v)
	})
}

func (s *Server) handleEvaluateAgreementStability(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, models.HistoryAgreement, func(ctx context.Context, v models.FeatureVector, req *models.EvaluationRequest) (any, error) {
		return s.deps.Runner.EvaluateAgreementStability(ctx, v, noiseParams(req))
	})
}

func (s *Server) handleEvaluateFull(w http.ResponseWriter, r *http.Request) {
	s.evaluate(w, r, models.HistoryFull, func(ctx context.Context, v models.FeatureVector, req *models.EvaluationRequest) (any, error) {
		return s.deps.Runner.RunFull(ctx, v, fullParams(req))
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := s.deps.Auth.UserIDFromRequest(r)
	if userID == "" {
		writeErrorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}

	kind := models.HistoryKind(r.URL.Query().Get("kind"))
	entries, err := s.deps.History.ListByUser(r.Context(), userID, kind, parseLimit(r, history.DefaultListLimit))
	if err != nil {
		s.writeFault(w, r, "history", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
}

// record queues history for an authenticated caller
func (s *Server) record(r *http.Request, kind models.HistoryKind, input, result any) {
	if s.deps.Recorder == nil || s.deps.Auth == nil {
		return
	}
	if userID := s.deps.Auth.UserIDFromRequest(r); userID != "" {
		s.deps.Recorder.Record(userID, kind, input, result)
	}
}

func noiseParams(req *models.EvaluationRequest) evaluation.NoiseParams {
	p := evaluation.DefaultNoiseParams()
	if req.NoisePercentage != nil {
		p.Percentage = *req.NoisePercentage
	}
	if req.NumRuns != nil {
		p.Runs = *req.NumRuns
	}
	return p
}

func fullParams(req *models.EvaluationRequest) evaluation.FullParams {
	p := evaluation.DefaultFullParams()
	if req.RSSRuns != nil {
		p.RSSRuns = *req.RSSRuns
	}
	if req.NoiseLevel != nil {
		p.NoiseLevel = *req.NoiseLevel
	}
	return p
}
