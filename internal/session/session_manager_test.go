package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/types"
)

type SessionManagerTestSuite struct {
	suite.Suite
	clock   *types.MarketClock
	manager *SessionManager
	dataDir string
}

func (suite *SessionManagerTestSuite) SetupTest() {
	clock, err := types.NewMarketClock("America/New_York")
	suite.Require().NoError(err)

	suite.clock = clock
	suite.dataDir = suite.T().TempDir()
	suite.manager = NewSessionManager(clock, logger.NewNopLogger())
}

func TestSessionManagerSuite(t *testing.T) {
	suite.Run(t, new(SessionManagerTestSuite))
}

func (suite *SessionManagerTestSuite) TestInitializeCreatesRunFolder() {
	suite.Require().NoError(suite.manager.Initialize(suite.dataDir))

	suite.Equal(1, suite.manager.GetRunNumber())
	suite.DirExists(suite.manager.GetCurrentRunPath())
	suite.Equal(
		filepath.Join(suite.dataDir, suite.manager.GetTradingDate(), "run_1"),
		suite.manager.GetCurrentRunPath(),
	)
}

func (suite *SessionManagerTestSuite) TestInitializeAssignsUUIDRunID() {
	suite.Require().NoError(suite.manager.Initialize(suite.dataDir))

	_, err := uuid.Parse(suite.manager.GetRunID())
	suite.NoError(err)
}

func (suite *SessionManagerTestSuite) TestRunNumberIncrements() {
	date := suite.clock.SessionDate(time.Now())
	suite.Require().NoError(os.MkdirAll(filepath.Join(suite.dataDir, date, "run_1"), 0755))
	suite.Require().NoError(os.MkdirAll(filepath.Join(suite.dataDir, date, "run_3"), 0755))

	suite.Require().NoError(suite.manager.Initialize(suite.dataDir))
	suite.Equal(4, suite.manager.GetRunNumber())
}

func (suite *SessionManagerTestSuite) TestHandleDateBoundarySameDate() {
	suite.Require().NoError(suite.manager.Initialize(suite.dataDir))

	rolled, err := suite.manager.HandleDateBoundary(time.Now())
	suite.NoError(err)
	suite.False(rolled)
}

func (suite *SessionManagerTestSuite) TestHandleDateBoundaryNewDate() {
	suite.Require().NoError(suite.manager.Initialize(suite.dataDir))
	previousPath := suite.manager.GetCurrentRunPath()

	rolled, err := suite.manager.HandleDateBoundary(time.Now().Add(48 * time.Hour))
	suite.NoError(err)
	suite.True(rolled)
	suite.NotEqual(previousPath, suite.manager.GetCurrentRunPath())
	suite.DirExists(suite.manager.GetCurrentRunPath())
}
