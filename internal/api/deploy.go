package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/domain"
	"github.com/driftwatch/driftwatch/internal/infra/baseline"
	"github.com/driftwatch/driftwatch/internal/infra/gateway"
	"github.com/driftwatch/driftwatch/internal/infra/registry"
	"github.com/driftwatch/driftwatch/internal/infra/validator"
)

// Deployer runs the intake pipeline for a pushed artifact: register (or
// find) the model, validate the artifact, complete the lifecycle
// transition, install the predictor on the gateway, and build the
// reference baseline when reference data ships with the push.
type Deployer struct {
	models    *registry.Manager
	validator *validator.Validator
	loader    domain.Loader
	baselines *baseline.Builder
	gateway   *gateway.Gateway
	log       *zap.Logger
}

// NewDeployer creates the intake pipeline.
func NewDeployer(models *registry.Manager, v *validator.Validator, loader domain.Loader,
	baselines *baseline.Builder, gw *gateway.Gateway, log *zap.Logger) *Deployer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Deployer{
		models:    models,
		validator: v,
		loader:    loader,
		baselines: baselines,
		gateway:   gw,
		log:       log,
	}
}

// PushEvent is a parsed artifact push handed to the pipeline.
type PushEvent struct {
	Ref           domain.ArtifactRef
	SampleInput   map[string]any
	ReferenceData map[string][]any
}

// DeployResult reports the outcome of one intake run.
type DeployResult struct {
	Model   *domain.Model  `json:"model"`
	Verdict domain.Verdict `json:"verdict"`
}

// Deploy runs the full intake pipeline for one push. A failed validation
// is not an error: the verdict is recorded on the model and returned. On
// a failed redeploy the previously deployed version keeps serving.
func (d *Deployer) Deploy(ctx context.Context, push PushEvent) (*DeployResult, error) {
	model, err := d.models.FindByName(push.Ref.Name)
	if errors.Is(err, domain.ErrModelNotFound) {
		model, err = d.models.Register(push.Ref.Name, push.Ref.Version, push.Ref.Repo)
	}
	if err != nil {
		return nil, err
	}

	wasDeployed := model.Deployed()
	if _, err := d.models.BeginValidation(model.ID, push.Ref.Version); err != nil {
		return nil, err
	}

	verdict := d.validator.Validate(ctx, push.Ref, push.SampleInput)
	model, err = d.models.CompleteValidation(model.ID, verdict)
	if err != nil {
		return nil, err
	}
	if !verdict.Passed {
		d.log.Warn("artifact rejected",
			zap.String("model", push.Ref.Name),
			zap.String("version", push.Ref.Version),
			zap.String("reason", verdict.Reason),
			zap.Bool("previous_version_serving", wasDeployed))
		return &DeployResult{Model: model, Verdict: verdict}, nil
	}

	predictor, err := d.loader.Load(ctx, push.Ref)
	if err != nil {
		// Validation loaded the artifact moments ago; a failure here is
		// an infrastructure fault, not a model fault.
		d.log.Error("predictor install failed after validation",
			zap.String("model_id", model.ID), zap.Error(err))
		return &DeployResult{Model: model, Verdict: verdict}, nil
	}
	d.gateway.Install(model.ID, predictor)

	if len(push.ReferenceData) > 0 {
		if _, err := d.baselines.BuildFor(model.ID, push.Ref.Version, push.ReferenceData); err != nil {
			d.log.Warn("baseline build failed, drift checks will report missing baseline",
				zap.String("model_id", model.ID), zap.Error(err))
		}
	}

	d.log.Info("model deployed",
		zap.String("model_id", model.ID),
		zap.String("name", model.Name),
		zap.String("version", model.Version))
	return &DeployResult{Model: model, Verdict: verdict}, nil
}

// ─── Webhook Handler ─────────────────────────────────────────────────────────

type webhookRequest struct {
	Ref        string `json:"ref"` // git ref, e.g. refs/heads/main
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
	} `json:"repository"`
	Model struct {
		Name    string `json:"name"`
		Version string `json:"version"`
		URI     string `json:"uri"`
	} `json:"model"`
	SampleInput   map[string]any   `json:"sample_input"`
	ReferenceData map[string][]any `json:"reference_data"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return
	}

	// Only pushes to the default branch trigger a deployment.
	if req.Ref != "" {
		branch := req.Ref[strings.LastIndex(req.Ref, "/")+1:]
		if branch != "main" && branch != "master" {
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "skipped",
				"message": "push to non-default branch " + branch + " ignored",
			})
			return
		}
	}

	name := req.Model.Name
	if name == "" {
		name = req.Repository.Name
	}
	if name == "" || req.Model.Version == "" {
		writeError(w, http.StatusBadRequest, "payload must carry model name and version")
		return
	}

	result, err := s.deployer.Deploy(r.Context(), PushEvent{
		Ref: domain.ArtifactRef{
			Name:    name,
			Version: req.Model.Version,
			Repo:    req.Repository.FullName,
			URI:     req.Model.URI,
		},
		SampleInput:   req.SampleInput,
		ReferenceData: req.ReferenceData,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if !result.Verdict.Passed {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status":   "failed",
			"message":  "validation failed: " + result.Verdict.Reason,
			"model_id": result.Model.ID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   "model " + result.Model.Name + " version " + result.Model.Version + " deployed",
		"model_id":  result.Model.ID,
		"endpoints": result.Model.Endpoints,
	})
}
