package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"franchise-bootstrap/internal/bootstrap/domain/model"
	apperrors "franchise-bootstrap/internal/shared/errors"
	"franchise-bootstrap/internal/shared/logger"

	"github.com/stretchr/testify/mock"
)

// memoryServer mimics the parts of a MongoDB server the bootstrap touches
type memoryServer struct {
	mu        sync.Mutex
	databases map[string]*memoryDatabase
}

type memoryDatabase struct {
	users       map[string]model.UserSpec
	collections map[string]bool
}

func newMemoryServer() *memoryServer {
	return &memoryServer{databases: make(map[string]*memoryDatabase)}
}

func (s *memoryServer) database(name string) *memoryDatabase {
	db, ok := s.databases[name]
	if !ok {
		db = &memoryDatabase{
			users:       make(map[string]model.UserSpec),
			collections: make(map[string]bool),
		}
		s.databases[name] = db
	}
	return db
}

// seedCollection creates a collection directly, as a previous deployment would have
func (s *memoryServer) seedCollection(database, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.database(database).collections[name] = true
}

func (s *memoryServer) collections(database string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for c := range s.database(database).collections {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (s *memoryServer) user(database, name string) (model.UserSpec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.database(database).users[name]
	return u, ok
}

// memoryProvisioner implements repository.Provisioner on a memoryServer.
// failOn injects an error into the named step; failOnTarget narrows it to a
// single collection.
type memoryProvisioner struct {
	server       *memoryServer
	selected     string
	failOn       map[model.Step]error
	failOnTarget map[string]error
	calls        []string

	// silentExisting makes creating an existing collection a no-op instead of
	// a NamespaceExists error, as some server versions do.
	silentExisting bool
}

func newMemoryProvisioner(server *memoryServer) *memoryProvisioner {
	return &memoryProvisioner{
		server:       server,
		failOn:       make(map[model.Step]error),
		failOnTarget: make(map[string]error),
	}
}

func (p *memoryProvisioner) SelectDatabase(ctx context.Context, name string) error {
	p.calls = append(p.calls, "select:"+name)
	if err := p.failOn[model.StepSelectDatabase]; err != nil {
		return err
	}
	p.selected = name
	return nil
}

func (p *memoryProvisioner) CreateUser(ctx context.Context, user model.UserSpec) error {
	p.calls = append(p.calls, "user:"+user.Name)
	if p.selected == "" {
		return apperrors.ErrDatabaseNotSelected
	}
	if err := p.failOn[model.StepCreateUser]; err != nil {
		return err
	}
	p.server.mu.Lock()
	defer p.server.mu.Unlock()
	db := p.server.database(p.selected)
	if _, exists := db.users[user.Name]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("user %s already exists", user.Name)).
			WithCause(fmt.Errorf("%w: (Location51003) User \"%s@%s\" already exists", apperrors.ErrDuplicateUser, user.Name, p.selected))
	}
	db.users[user.Name] = user
	return nil
}

func (p *memoryProvisioner) CreateCollection(ctx context.Context, name string) error {
	p.calls = append(p.calls, "collection:"+name)
	if p.selected == "" {
		return apperrors.ErrDatabaseNotSelected
	}
	if err := p.failOnTarget[name]; err != nil {
		return err
	}
	if err := p.failOn[model.StepCreateCollection]; err != nil {
		return err
	}
	p.server.mu.Lock()
	defer p.server.mu.Unlock()
	db := p.server.database(p.selected)
	if db.collections[name] {
		if p.silentExisting {
			return nil
		}
		return fmt.Errorf("collection %s: %w: (NamespaceExists) Collection already exists", name, apperrors.ErrCollectionExists)
	}
	db.collections[name] = true
	return nil
}

func (p *memoryProvisioner) Inspect(ctx context.Context) (*model.State, error) {
	if p.selected == "" {
		return nil, apperrors.ErrDatabaseNotSelected
	}
	state := &model.State{Database: p.selected, Collections: p.server.collections(p.selected)}
	p.server.mu.Lock()
	defer p.server.mu.Unlock()
	for _, u := range p.server.database(p.selected).users {
		state.Users = append(state.Users, model.UserSpec{Name: u.Name, Roles: u.Roles})
	}
	return state, nil
}

func defaultPlan() *model.Plan {
	return model.NewPlan(model.DefaultDatabase, model.DefaultUser, model.DefaultPassword, model.RoleReadWrite, model.DefaultCollections())
}

// attempted reports whether the run recorded step against target
func attempted(report *model.Report, step model.Step, target string) bool {
	for _, s := range report.Steps {
		if s.Step == step && s.Target == target {
			return true
		}
	}
	return false
}

// mockPublisher is a testify mock of repository.EventPublisher
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCompleted(ctx context.Context, report *model.Report) error {
	return m.Called(ctx, report).Error(0)
}

// failingWriter rejects every write
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("stdout closed")
}

func quietLogger() logger.Logger {
	return logger.New(logger.Options{Level: "error", Output: io.Discard})
}
