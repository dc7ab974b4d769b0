package bootstrap

import (
	"context"
	"io"

	"franchise-bootstrap/internal/bootstrap/adapter/persistence/mongodb"
	"franchise-bootstrap/internal/bootstrap/config"
	"franchise-bootstrap/internal/bootstrap/domain/model"
	"franchise-bootstrap/internal/bootstrap/domain/repository"
	"franchise-bootstrap/internal/bootstrap/usecase"
	"franchise-bootstrap/internal/shared/logger"

	"go.mongodb.org/mongo-driver/mongo"
)

// BootstrapModule represents the complete database bootstrap module
type BootstrapModule struct {
	provisioner repository.Provisioner
	publisher   repository.EventPublisher
	usecase     *usecase.BootstrapUsecase
	config      *config.Config
}

// NewBootstrapModule creates a new bootstrap module instance. publisher may
// be nil, in which case completed runs are not announced anywhere but stdout.
func NewBootstrapModule(client *mongo.Client, cfg *config.Config, publisher repository.EventPublisher, log logger.Logger, out io.Writer) (*BootstrapModule, error) {
	provisioner := mongodb.NewProvisioner(client, log)
	return newModule(provisioner, cfg, publisher, log, out)
}

// PlanFromConfig builds the provisioning plan described by cfg
func PlanFromConfig(cfg *config.Config) *model.Plan {
	return model.NewPlan(cfg.DatabaseName, cfg.User.Name, cfg.User.Password, cfg.User.Role, cfg.Collections)
}

func newModule(provisioner repository.Provisioner, cfg *config.Config, publisher repository.EventPublisher, log logger.Logger, out io.Writer) (*BootstrapModule, error) {
	plan := PlanFromConfig(cfg)
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	uc := usecase.NewBootstrapUsecase(plan, provisioner, log, usecase.Options{
		TolerateExistingCollections: cfg.TolerateExistingCollections,
		Output:                      out,
		Publisher:                   publisher,
	})

	return &BootstrapModule{
		provisioner: provisioner,
		publisher:   publisher,
		usecase:     uc,
		config:      cfg,
	}, nil
}

// Run provisions the configured database
func (bm *BootstrapModule) Run(ctx context.Context) (*model.Report, error) {
	return bm.usecase.Run(ctx)
}

// Verify checks the configured database against the plan
func (bm *BootstrapModule) Verify(ctx context.Context) (*model.State, error) {
	return bm.usecase.Verify(ctx)
}

// VerifyEnabled reports whether a run should be followed by Verify
func (bm *BootstrapModule) VerifyEnabled() bool {
	return bm.config.Verify
}

// Plan returns the plan the module executes
func (bm *BootstrapModule) Plan() *model.Plan {
	return bm.usecase.Plan()
}
