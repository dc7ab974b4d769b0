package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"franchise-bootstrap/internal/bootstrap/domain/model"
	apperrors "franchise-bootstrap/internal/shared/errors"
	"franchise-bootstrap/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB server error codes the bootstrap distinguishes
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
	codeNamespaceExists      = 48
	codeDuplicateKey         = 11000
	codeUserAlreadyExists    = 51003
)

const component = "mongodb"

// Provisioner implements repository.Provisioner against a MongoDB server
type Provisioner struct {
	client *mongo.Client
	db     *mongo.Database
	logger logger.Logger
}

// NewProvisioner creates a provisioner on an established client
func NewProvisioner(client *mongo.Client, log logger.Logger) *Provisioner {
	return &Provisioner{
		client: client,
		logger: log.WithComponent(component),
	}
}

// SelectDatabase verifies the server is reachable with the configured
// credentials and binds the target database.
func (p *Provisioner) SelectDatabase(ctx context.Context, name string) error {
	if err := p.client.Ping(ctx, readpref.Primary()); err != nil {
		return ClassifyError(err, fmt.Sprintf("failed to select database %s", name))
	}
	p.db = p.client.Database(name)

	p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"database": name,
	}).Debug("Selected target database")
	return nil
}

// CreateUser runs createUser on the selected database
func (p *Provisioner) CreateUser(ctx context.Context, user model.UserSpec) error {
	if p.db == nil {
		return apperrors.ErrDatabaseNotSelected
	}

	roles := bson.A{}
	for _, r := range user.Roles {
		roles = append(roles, bson.D{{Key: "role", Value: r.Role}, {Key: "db", Value: r.DB}})
	}
	cmd := bson.D{
		{Key: "createUser", Value: user.Name},
		{Key: "pwd", Value: user.Password},
		{Key: "roles", Value: roles},
	}

	if err := p.db.RunCommand(ctx, cmd).Err(); err != nil {
		if isDuplicateUser(err) {
			return apperrors.NewConflictError(fmt.Sprintf("user %s already exists in %s", user.Name, p.db.Name())).
				WithCode("USER_ALREADY_EXISTS").
				WithCause(fmt.Errorf("%w: %w", apperrors.ErrDuplicateUser, err)).
				WithComponent(component).
				WithDetail("user", user.Name)
		}
		return ClassifyError(err, fmt.Sprintf("failed to create user %s", user.Name))
	}

	p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"user":  user.Name,
		"roles": len(user.Roles),
	}).Debug("Created user")
	return nil
}

// CreateCollection creates an empty collection in the selected database
func (p *Provisioner) CreateCollection(ctx context.Context, name string) error {
	if p.db == nil {
		return apperrors.ErrDatabaseNotSelected
	}

	if err := p.db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExists(err) {
			return fmt.Errorf("collection %s: %w: %w", name, apperrors.ErrCollectionExists, err)
		}
		return ClassifyError(err, fmt.Sprintf("failed to create collection %s", name))
	}

	p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"collection": name,
	}).Debug("Created collection")
	return nil
}

// usersInfoResult is the reply of the usersInfo command
type usersInfoResult struct {
	Users []struct {
		User  string            `bson:"user"`
		DB    string            `bson:"db"`
		Roles []model.RoleGrant `bson:"roles"`
	} `bson:"users"`
}

// Inspect lists the collections and users of the selected database
func (p *Provisioner) Inspect(ctx context.Context) (*model.State, error) {
	if p.db == nil {
		return nil, apperrors.ErrDatabaseNotSelected
	}

	names, err := p.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, ClassifyError(err, "failed to list collections")
	}

	var info usersInfoResult
	if err := p.db.RunCommand(ctx, bson.D{{Key: "usersInfo", Value: 1}}).Decode(&info); err != nil {
		return nil, ClassifyError(err, "failed to read users")
	}

	state := &model.State{Database: p.db.Name(), Collections: make([]string, 0, len(names))}
	for _, n := range names {
		if !strings.HasPrefix(n, "system.") {
			state.Collections = append(state.Collections, n)
		}
	}
	for _, u := range info.Users {
		state.Users = append(state.Users, model.UserSpec{Name: u.User, Roles: u.Roles})
	}
	return state, nil
}

func isDuplicateUser(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(codeUserAlreadyExists) ||
			se.HasErrorCode(codeDuplicateKey) ||
			se.HasErrorMessage("already exists")
	}
	return false
}

func isNamespaceExists(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(codeNamespaceExists)
}

func isUnauthorized(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeUnauthorized) || se.HasErrorCode(codeAuthenticationFailed)) {
		return true
	}
	// SCRAM failures during the connection handshake surface as a
	// topology.ConnectionError wrapping an auth.Error, which carries no server
	// code. Its text reads "auth error: sasl conversation error: unable to
	// authenticate using mechanism ...: (AuthenticationFailed) Authentication failed."
	return strings.Contains(err.Error(), "AuthenticationFailed") ||
		strings.Contains(err.Error(), "unable to authenticate")
}

// ClassifyError turns a driver error into an AppError that keeps the driver
// error as its cause.
func ClassifyError(err error, message string) error {
	var appErr *apperrors.AppError
	if isUnauthorized(err) {
		appErr = apperrors.NewAuthorizationError(message).
			WithCode("MONGODB_UNAUTHORIZED").
			WithCause(fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err))
	} else {
		appErr = apperrors.NewInfrastructureError(message).
			WithCode("MONGODB_UNAVAILABLE").
			WithCause(err)
	}
	if mongo.IsTimeout(err) {
		appErr.WithDetail("timeout", true)
	}
	if mongo.IsNetworkError(err) {
		appErr.WithDetail("network", true)
	}
	return appErr.WithComponent(component)
}
