package mongodb_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"franchise-bootstrap/internal/bootstrap/adapter/persistence/mongodb"
	"franchise-bootstrap/internal/bootstrap/domain/model"
	"franchise-bootstrap/internal/bootstrap/usecase"
	apperrors "franchise-bootstrap/internal/shared/errors"
	"franchise-bootstrap/internal/shared/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProvisionerTestSuite struct {
	suite.Suite
	uri      string
	client   *mongo.Client
	log      logger.Logger
	database string
}

func (suite *ProvisionerTestSuite) SetupSuite() {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(2*time.Second))
	if err != nil {
		suite.T().Skip("MongoDB not available for testing")
		return
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		suite.T().Skip("MongoDB not available for testing")
		return
	}

	suite.uri = uri
	suite.client = client
	suite.log = logger.New(logger.Options{Level: "error", Output: io.Discard})
}

func (suite *ProvisionerTestSuite) TearDownSuite() {
	if suite.client != nil {
		suite.client.Disconnect(context.Background())
	}
}

func (suite *ProvisionerTestSuite) SetupTest() {
	suite.database = "franchise_test_" + uuid.NewString()[:8]
}

func (suite *ProvisionerTestSuite) TearDownTest() {
	if suite.client == nil {
		return
	}
	db := suite.client.Database(suite.database)
	db.RunCommand(context.Background(), bson.D{{Key: "dropAllUsersFromDatabase", Value: 1}})
	db.Drop(context.Background())
}

func (suite *ProvisionerTestSuite) newUsecase(out io.Writer) *usecase.BootstrapUsecase {
	plan := model.NewPlan(suite.database, model.DefaultUser, model.DefaultPassword, model.RoleReadWrite, model.DefaultCollections())

	return usecase.NewBootstrapUsecase(
		plan,
		mongodb.NewProvisioner(suite.client, suite.log),
		suite.log,
		usecase.Options{TolerateExistingCollections: true, Output: out},
	)
}

func (suite *ProvisionerTestSuite) TestFreshServer() {
	ctx := context.Background()
	var out bytes.Buffer

	report, err := suite.newUsecase(&out).Run(ctx)
	suite.Require().NoError(err)
	assert.True(suite.T(), report.Completed)
	assert.Equal(suite.T(), fmt.Sprintf("Base de datos %s inicializada correctamente\n", suite.database), out.String())

	state, err := suite.newUsecase(io.Discard).Verify(ctx)
	suite.Require().NoError(err)
	assert.ElementsMatch(suite.T(), []string{"franchises", "branches", "products"}, state.Collections)

	user, ok := state.User("franchise_user")
	suite.Require().True(ok)
	assert.True(suite.T(), user.HasRole("readWrite", suite.database))

	// franchises are looked up by _id only; names may repeat
	franchises := suite.client.Database(suite.database).Collection("franchises")
	indexes, err := franchises.Indexes().ListSpecifications(ctx)
	suite.Require().NoError(err)
	suite.Require().Len(indexes, 1)
	assert.Equal(suite.T(), "_id_", indexes[0].Name)

	_, err = franchises.InsertOne(ctx, bson.D{{Key: "name", Value: "Franquicia Test"}})
	suite.Require().NoError(err)
	_, err = franchises.InsertOne(ctx, bson.D{{Key: "name", Value: "Franquicia Test"}})
	assert.NoError(suite.T(), err)
}

func (suite *ProvisionerTestSuite) TestUserAlreadyExists() {
	ctx := context.Background()
	_, err := suite.newUsecase(io.Discard).Run(ctx)
	suite.Require().NoError(err)

	var out bytes.Buffer
	report, err := suite.newUsecase(&out).Run(ctx)
	suite.Require().Error(err)

	assert.True(suite.T(), apperrors.IsDuplicateUser(err))
	assert.Equal(suite.T(), apperrors.ExitConflict, apperrors.ExitCode(err))
	failed, ok := report.FailedStep()
	suite.Require().True(ok)
	assert.Equal(suite.T(), model.StepCreateUser, failed.Step)
	assert.Empty(suite.T(), out.String())
}

func (suite *ProvisionerTestSuite) TestCollectionAlreadyExists() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.client.Database(suite.database).CreateCollection(ctx, "branches"))

	var out bytes.Buffer
	report, err := suite.newUsecase(&out).Run(ctx)
	suite.Require().NoError(err)
	assert.NotEmpty(suite.T(), out.String())

	outcomes := map[string]model.Outcome{}
	for _, s := range report.Steps {
		if s.Step == model.StepCreateCollection {
			outcomes[s.Target] = s.Outcome
		}
	}
	assert.Equal(suite.T(), model.OutcomeExisting, outcomes["branches"])
	assert.Equal(suite.T(), model.OutcomeCreated, outcomes["franchises"])
	assert.Equal(suite.T(), model.OutcomeCreated, outcomes["products"])
}

func (suite *ProvisionerTestSuite) TestCreateCollection_Exists() {
	ctx := context.Background()
	p := mongodb.NewProvisioner(suite.client, suite.log)
	suite.Require().NoError(p.SelectDatabase(ctx, suite.database))
	suite.Require().NoError(p.CreateCollection(ctx, "products"))

	err := p.CreateCollection(ctx, "products")
	assert.True(suite.T(), apperrors.IsCollectionExists(err))
}

func (suite *ProvisionerTestSuite) TestSelectDatabase_BadCredentials() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(suite.uri).
		SetServerSelectionTimeout(2 * time.Second).
		SetAuth(options.Credential{Username: "nobody_" + uuid.NewString()[:8], Password: "wrong", AuthSource: "admin"})
	client, err := mongo.Connect(ctx, opts)
	suite.Require().NoError(err)
	defer client.Disconnect(context.Background())

	err = mongodb.NewProvisioner(client, suite.log).SelectDatabase(ctx, suite.database)
	suite.Require().Error(err)
	assert.True(suite.T(), apperrors.IsAuthorization(err), err.Error())
	assert.Equal(suite.T(), apperrors.ExitAuthorization, apperrors.ExitCode(err))
}

func TestProvisionerTestSuite(t *testing.T) {
	suite.Run(t, new(ProvisionerTestSuite))
}
