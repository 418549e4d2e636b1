package academic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"academic-service/internal/auth"
	"academic-service/internal/commandlog"
	"academic-service/internal/db"
	"academic-service/internal/metrics"

	"github.com/google/uuid"
)

const (
	entityName = "ACADEMICYEAR"

	PermissionRead     = "READ_" + entityName
	PermissionCreate   = "CREATE_" + entityName
	PermissionUpdate   = "UPDATE_" + entityName
	PermissionDelete   = "DELETE_" + entityName
	PermissionActivate = "ACTIVATE_" + entityName
	PermissionClose    = "CLOSE_" + entityName
)

const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionActivate = "ACTIVATE"
	ActionClose    = "CLOSE"
)

// CommandResult is returned by every write.
type CommandResult struct {
	CommandID  string         `json:"commandId"`
	ResourceID int64          `json:"resourceId"`
	Changes    map[string]any `json:"changes,omitempty"`
}

type ReadService interface {
	GetOne(ctx context.Context, caller auth.Caller, id int64) (*AcademicYearData, error)
	ListAll(ctx context.Context, caller auth.Caller) ([]AcademicYearData, error)
}

type WriteService interface {
	Create(ctx context.Context, caller auth.Caller, body []byte) (*CommandResult, error)
	Update(ctx context.Context, caller auth.Caller, id int64, body []byte) (*CommandResult, error)
	Delete(ctx context.Context, caller auth.Caller, id int64) (*CommandResult, error)
	Activate(ctx context.Context, caller auth.Caller, id int64) (*CommandResult, error)
	Close(ctx context.Context, caller auth.Caller, id int64) (*CommandResult, error)
}

type readService struct {
	repo Repository
}

func NewReadService(repo Repository) ReadService {
	return &readService{repo: repo}
}

func (s *readService) GetOne(ctx context.Context, caller auth.Caller, id int64) (*AcademicYearData, error) {
	if err := caller.Require(PermissionRead); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, &NotFoundError{ID: id}
	}

	ay, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	data := ay.ToData()
	return &data, nil
}

func (s *readService) ListAll(ctx context.Context, caller auth.Caller) ([]AcademicYearData, error) {
	if err := caller.Require(PermissionRead); err != nil {
		return nil, err
	}

	years, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]AcademicYearData, 0, len(years))
	for i := range years {
		out = append(out, years[i].ToData())
	}
	return out, nil
}

type WriteOptions struct {
	EndDatePolicy EndDatePolicy
	// Now defaults to time.Now.
	Now func() time.Time
}

type writeService struct {
	repo      Repository
	validator *Validator
	publisher commandlog.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	policy    EndDatePolicy
	now       func() time.Time
}

func NewWriteService(repo Repository, publisher commandlog.Publisher, m *metrics.Metrics, logger *slog.Logger, opts WriteOptions) WriteService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = commandlog.NopPublisher{}
	}
	return &writeService{
		repo:      repo,
		validator: NewValidator(),
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		policy:    opts.EndDatePolicy,
		now:       now,
	}
}

func (s *writeService) Create(ctx context.Context, caller auth.Caller, body []byte) (*CommandResult, error) {
	if err := caller.Require(PermissionCreate); err != nil {
		return nil, err
	}

	cmd, err := s.validator.Parse(body, ModeCreate)
	if err != nil {
		return nil, err
	}
	if err := checkDateOrder(*cmd.StartDate, *cmd.EndDate); err != nil {
		return nil, err
	}

	ay := NewAcademicYear(caller.UserID, cmd, s.policy, s.now())
	err = s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Create(ctx, ay)
	})
	if err != nil {
		return nil, s.translateStorageError(ctx, err, ay)
	}

	s.logger.InfoContext(ctx, "academic year created", "id", ay.ID, "name", ay.Name, "maker_id", caller.UserID)
	return s.complete(ctx, caller, ActionCreate, ay.ID, nil), nil
}

func (s *writeService) Update(ctx context.Context, caller auth.Caller, id int64, body []byte) (*CommandResult, error) {
	if err := caller.Require(PermissionUpdate); err != nil {
		return nil, err
	}

	cmd, err := s.validator.Parse(body, ModeUpdate)
	if err != nil {
		return nil, err
	}

	var (
		ay      *AcademicYear
		changes map[string]any
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		ay, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		changes = ay.Update(cmd)
		if err := checkDateOrder(ay.StartDate, ay.EndDate); err != nil {
			return err
		}
		if len(changes) == 0 {
			return nil
		}

		ay.touch(caller.UserID, s.now())
		return repo.Update(ctx, ay)
	})
	if err != nil {
		return nil, s.translateStorageError(ctx, err, ay)
	}

	if len(changes) > 0 {
		s.logger.InfoContext(ctx, "academic year updated", "id", id, "changed", len(changes), "maker_id", caller.UserID)
	}
	return s.complete(ctx, caller, ActionUpdate, id, changes), nil
}

func (s *writeService) Delete(ctx context.Context, caller auth.Caller, id int64) (*CommandResult, error) {
	return s.transition(ctx, caller, id, PermissionDelete, ActionDelete, (*AcademicYear).Delete)
}

func (s *writeService) Activate(ctx context.Context, caller auth.Caller, id int64) (*CommandResult, error) {
	return s.transition(ctx, caller, id, PermissionActivate, ActionActivate, (*AcademicYear).Activate)
}

func (s *writeService) Close(ctx context.Context, caller auth.Caller, id int64) (*CommandResult, error) {
	return s.transition(ctx, caller, id, PermissionClose, ActionClose, (*AcademicYear).Close)
}

// transition loads, changes status and saves one academic year in a single transaction.
func (s *writeService) transition(ctx context.Context, caller auth.Caller, id int64, permission, action string, apply func(*AcademicYear) error) (*CommandResult, error) {
	if err := caller.Require(permission); err != nil {
		return nil, err
	}

	var ay *AcademicYear
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		ay, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(ay); err != nil {
			return err
		}
		ay.touch(caller.UserID, s.now())
		return repo.Update(ctx, ay)
	})
	if err != nil {
		return nil, s.translateStorageError(ctx, err, ay)
	}

	s.logger.InfoContext(ctx, "academic year status changed", "id", id, "action", action, "status", ay.Status.String(), "maker_id", caller.UserID)
	return s.complete(ctx, caller, action, id, map[string]any{paramStatus: ay.Status.Option()}), nil
}

// complete builds the result of a committed command, then counts and publishes it.
// Publishing failures are logged; the command has already been applied.
func (s *writeService) complete(ctx context.Context, caller auth.Caller, action string, id int64, changes map[string]any) *CommandResult {
	result := &CommandResult{
		CommandID:  uuid.NewString(),
		ResourceID: id,
		Changes:    changes,
	}

	if action != ActionUpdate || len(changes) > 0 {
		s.metrics.RecordCommand(ctx, action)
	}

	event := commandlog.Event{
		CommandID:  result.CommandID,
		Action:     action,
		Entity:     entityName,
		ResourceID: id,
		MakerID:    caller.UserID,
		Changes:    changes,
		MadeOn:     s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish command event", "command_id", result.CommandID, "action", action, "error", err)
	}
	return result
}

func checkDateOrder(start, end time.Time) error {
	if end.Before(start) {
		return &DateOrderError{StartDate: formatDate(start), EndDate: formatDate(end)}
	}
	return nil
}

// translateStorageError turns constraint violations into domain errors. Domain
// errors raised inside the transaction pass through unchanged.
func (s *writeService) translateStorageError(ctx context.Context, err error, ay *AcademicYear) error {
	v, ok := db.AsConstraintViolation(err)
	if !ok {
		var ve *ValidationError
		if errors.As(err, &ve) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDateOrder) {
			return err
		}
		return fmt.Errorf("academic year storage: %w", err)
	}

	if v.Unique && ay != nil {
		switch {
		case v.Mentions(constraintName, tableName+".name"):
			return &DuplicateError{Parameter: paramName, Value: ay.Name}
		case v.Mentions(constraintShortName, tableName+".short_name"):
			return &DuplicateError{Parameter: paramShortName, Value: ay.ShortName}
		}
	}

	s.logger.ErrorContext(ctx, "unknown data integrity issue", "error", err, "constraint", v.Constraint)
	return ErrDataIntegrity
}
