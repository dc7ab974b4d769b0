package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"franchise-bootstrap/internal/bootstrap/domain/model"
	"franchise-bootstrap/internal/bootstrap/domain/repository"
	apperrors "franchise-bootstrap/internal/shared/errors"
	"franchise-bootstrap/internal/shared/logger"
	"franchise-bootstrap/internal/shared/utils"

	"github.com/google/uuid"
)

const component = "bootstrap"

// Options tune a BootstrapUsecase. The zero value writes to stdout, treats
// existing collections as fatal and publishes nothing.
type Options struct {
	// TolerateExistingCollections records "collection already exists" as
	// outcome existing instead of failing the run.
	TolerateExistingCollections bool

	// Output receives the completion message; defaults to os.Stdout.
	Output io.Writer

	// Publisher, when set, is told about completed runs.
	Publisher repository.EventPublisher
}

// BootstrapUsecase provisions one database according to a Plan
type BootstrapUsecase struct {
	plan        *model.Plan
	provisioner repository.Provisioner
	publisher   repository.EventPublisher
	out         io.Writer
	log         logger.Logger
	tolerate    bool

	now      func() time.Time
	newRunID func() string
}

// NewBootstrapUsecase creates a new BootstrapUsecase
func NewBootstrapUsecase(plan *model.Plan, provisioner repository.Provisioner, log logger.Logger, opts Options) *BootstrapUsecase {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &BootstrapUsecase{
		plan:        plan,
		provisioner: provisioner,
		publisher:   opts.Publisher,
		out:         out,
		log:         log.WithComponent(component),
		tolerate:    opts.TolerateExistingCollections,
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
}

// Plan returns the plan this use case executes
func (uc *BootstrapUsecase) Plan() *model.Plan {
	return uc.plan
}

// step is one unit of the ordered sequence
type step struct {
	name   model.Step
	target string
	run    func(ctx context.Context) error
}

// steps lists the plan's operations in execution order
func (uc *BootstrapUsecase) steps() []step {
	p := uc.plan
	steps := []step{
		{model.StepSelectDatabase, p.Database, func(ctx context.Context) error {
			return uc.provisioner.SelectDatabase(ctx, p.Database)
		}},
		{model.StepCreateUser, p.User.Name, func(ctx context.Context) error {
			return uc.provisioner.CreateUser(ctx, p.User)
		}},
	}
	for _, name := range p.Collections {
		name := name
		steps = append(steps, step{model.StepCreateCollection, name, func(ctx context.Context) error {
			return uc.provisioner.CreateCollection(ctx, name)
		}})
	}
	return steps
}

// Run executes the plan in order and stops at the first failing step. The
// completion message is written only when every step succeeded.
func (uc *BootstrapUsecase) Run(ctx context.Context) (*model.Report, error) {
	runID := utils.GetRunIDOrDefault(ctx, "")
	if runID == "" {
		runID = uc.newRunID()
	}
	report := &model.Report{
		RunID:     runID,
		Database:  uc.plan.Database,
		StartedAt: uc.now(),
	}

	ctx = utils.WithRunID(ctx, report.RunID)
	ctx = utils.WithDatabase(ctx, uc.plan.Database)
	log := uc.log.WithContext(ctx)

	if err := uc.plan.Validate(); err != nil {
		return uc.fail(log, report, err)
	}

	log.WithFields(map[string]interface{}{
		"user":        uc.plan.User.Name,
		"collections": uc.plan.Collections,
	}).Info("Starting database bootstrap")

	for _, s := range uc.steps() {
		if err := uc.execute(ctx, report, s); err != nil {
			return uc.fail(log, report, err)
		}
	}

	announce := step{model.StepAnnounce, uc.plan.Database, func(context.Context) error {
		_, err := fmt.Fprintln(uc.out, model.CompletionMessage(uc.plan.Database))
		return err
	}}
	if err := uc.execute(ctx, report, announce); err != nil {
		return uc.fail(log, report, err)
	}

	report.Completed = true
	report.FinishedAt = uc.now()
	log.WithFields(map[string]interface{}{
		"steps":       len(report.Steps),
		"duration_ms": report.Duration().Milliseconds(),
	}).Info("Database bootstrap completed")

	uc.publish(ctx, log, report)
	return report, nil
}

// execute runs one step and records its result
func (uc *BootstrapUsecase) execute(ctx context.Context, report *model.Report, s step) error {
	ctx = utils.WithStep(ctx, string(s.name))
	start := uc.now()
	err := s.run(ctx)

	result := model.StepResult{Step: s.name, Target: s.target, Outcome: model.OutcomeCreated, Duration: uc.now().Sub(start)}
	log := uc.log.WithContext(ctx).WithFields(map[string]interface{}{
		"target":      s.target,
		"duration_ms": result.Duration.Milliseconds(),
	})

	switch {
	case err == nil:
		report.Steps = append(report.Steps, result)
		log.Info("Step completed")
		return nil
	case s.name == model.StepCreateCollection && uc.tolerate && apperrors.IsCollectionExists(err):
		result.Outcome = model.OutcomeExisting
		report.Steps = append(report.Steps, result)
		log.Info("Collection already exists, keeping it")
		return nil
	}

	result.Outcome = model.OutcomeFailed
	result.Err = stepError(s, err)
	report.Steps = append(report.Steps, result)
	return result.Err
}

// stepError attaches the step to err, keeping the error type assigned by the
// provisioner.
func stepError(s step, err error) error {
	var appErr *apperrors.AppError
	switch {
	case apperrors.IsCollectionExists(err):
		appErr = apperrors.NewConflictError(fmt.Sprintf("%s %s failed", s.name, s.target)).
			WithCode("COLLECTION_ALREADY_EXISTS").
			WithCause(err)
	default:
		appErr = apperrors.WrapError(err, fmt.Sprintf("%s %s failed", s.name, s.target))
	}
	return appErr.WithDetail("step", string(s.name)).WithDetail("target", s.target)
}

func (uc *BootstrapUsecase) fail(log logger.Logger, report *model.Report, err error) (*model.Report, error) {
	report.FinishedAt = uc.now()
	report.Err = err

	fields := map[string]interface{}{
		"error": err.Error(),
		"steps": len(report.Steps),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		fields["code"] = appErr.Code
	}
	if failed, ok := report.FailedStep(); ok {
		fields["failed_step"] = string(failed.Step)
		fields["target"] = failed.Target
	}
	log.WithFields(fields).Error("Database bootstrap failed")
	return report, err
}

func (uc *BootstrapUsecase) publish(ctx context.Context, log logger.Logger, report *model.Report) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishCompleted(ctx, report); err != nil {
		log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("Failed to publish bootstrap event")
	}
}

// Verify checks that the server holds the plan's user, role grants and
// collections. It keeps the run id carried by ctx, so a Verify after Run
// logs under the same run.
func (uc *BootstrapUsecase) Verify(ctx context.Context) (*model.State, error) {
	if !utils.HasRunID(ctx) {
		ctx = utils.WithRunID(ctx, uc.newRunID())
	}
	runID, err := utils.GetRunIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ctx = utils.WithDatabase(ctx, uc.plan.Database)
	ctx = utils.WithStep(ctx, "verify")

	if err := uc.provisioner.SelectDatabase(ctx, uc.plan.Database); err != nil {
		return nil, err
	}
	state, err := uc.provisioner.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	state.RunID = runID

	var missing []string
	user, ok := state.User(uc.plan.User.Name)
	if !ok {
		missing = append(missing, "user "+uc.plan.User.Name)
	}
	for _, r := range uc.plan.User.Roles {
		if ok && !user.HasRole(r.Role, r.DB) {
			missing = append(missing, fmt.Sprintf("role %s on %s", r.Role, r.DB))
		}
	}
	for _, c := range uc.plan.Collections {
		if !state.HasCollection(c) {
			missing = append(missing, "collection "+c)
		}
	}

	if len(missing) > 0 {
		return state, apperrors.NewDomainError(fmt.Sprintf("database %s is incomplete", uc.plan.Database)).
			WithCode("VERIFICATION_FAILED").
			WithCause(apperrors.ErrVerificationFailed).
			WithComponent(component).
			WithDetail("missing", missing)
	}

	uc.log.WithContext(ctx).WithFields(map[string]interface{}{
		"collections": state.SortedCollections(),
		"users":       len(state.Users),
	}).Info("Bootstrap verified")
	return state, nil
}
