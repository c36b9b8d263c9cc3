// Package session manages per-trading-day run folders and the
// pre-open roll schedule that rebuilds symbol pipelines.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-feed/internal/logger"
	"github.com/rxtech-lab/argo-feed/internal/types"
)

// SessionManager handles archive folder management for one engine
// process. It creates and manages the folder structure:
//
//	{dataOutputPath}/{tradingDate}/run_N/
//
// Dates are trading dates in the exchange timezone, so a run started
// late in the New York evening still lands in that trading day's folder.
type SessionManager struct {
	dataOutputPath string
	clock          *types.MarketClock
	runID          string
	runNumber      int
	sessionStart   time.Time
	currentDate    string
	currentRunPath string
	mu             sync.Mutex
	logger         *logger.Logger
}

// NewSessionManager creates a new SessionManager instance.
func NewSessionManager(clock *types.MarketClock, log *logger.Logger) *SessionManager {
	//nolint:exhaustruct
	return &SessionManager{
		clock:  clock,
		logger: log,
	}
}

// Initialize sets up the session manager with the data output path.
// It assigns a fresh run ID, determines the next run number for the
// current trading date, and creates the folder structure.
func (s *SessionManager) Initialize(dataOutputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dataOutputPath = dataOutputPath
	s.sessionStart = time.Now()
	s.currentDate = s.clock.SessionDate(s.sessionStart)
	s.runID = uuid.New().String()

	runNumber, err := s.determineRunNumber(s.currentDate)
	if err != nil {
		return fmt.Errorf("failed to determine run number: %w", err)
	}

	s.runNumber = runNumber

	if err := s.createFolderStructure(); err != nil {
		return fmt.Errorf("failed to create folder structure: %w", err)
	}

	s.logger.Info("Session initialized",
		zap.String("run_id", s.runID),
		zap.Int("run_number", s.runNumber),
		zap.String("trading_date", s.currentDate),
		zap.String("path", s.currentRunPath),
	)

	return nil
}

// determineRunNumber scans the date folder for existing run folders and returns the next run number.
//
//nolint:funcorder // helper method used by Initialize
func (s *SessionManager) determineRunNumber(date string) (int, error) {
	datePath := filepath.Join(s.dataOutputPath, date)

	if _, err := os.Stat(datePath); os.IsNotExist(err) {
		// First run for this date
		return 1, nil
	}

	entries, err := os.ReadDir(datePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read date directory: %w", err)
	}

	runPattern := regexp.MustCompile(`^run_(\d+)$`)
	maxRunNumber := 0

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		matches := runPattern.FindStringSubmatch(entry.Name())
		if len(matches) == 2 {
			num, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}

			if num > maxRunNumber {
				maxRunNumber = num
			}
		}
	}

	return maxRunNumber + 1, nil
}

// createFolderStructure creates the folder structure for the current session.
//
//nolint:funcorder // helper method used by Initialize and HandleDateBoundary
func (s *SessionManager) createFolderStructure() error {
	s.currentRunPath = filepath.Join(s.dataOutputPath, s.currentDate, fmt.Sprintf("run_%d", s.runNumber))

	if err := os.MkdirAll(s.currentRunPath, 0755); err != nil {
		return fmt.Errorf("failed to create run folder: %w", err)
	}

	return nil
}

// HandleDateBoundary checks if the trading date has changed and creates
// a new folder if needed. Returns true if a new folder was created.
func (s *SessionManager) HandleDateBoundary(timestamp time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newDate := s.clock.SessionDate(timestamp)
	if newDate == s.currentDate {
		return false, nil
	}

	oldDate := s.currentDate
	s.currentDate = newDate

	if err := s.createFolderStructure(); err != nil {
		return false, fmt.Errorf("failed to create folder for new date: %w", err)
	}

	s.logger.Info("Trading date rolled, created new folder",
		zap.String("old_date", oldDate),
		zap.String("new_date", newDate),
		zap.String("run_id", s.runID),
		zap.String("new_path", s.currentRunPath),
	)

	return true, nil
}

// GetCurrentRunPath returns the current run folder path.
func (s *SessionManager) GetCurrentRunPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentRunPath
}

// GetRunID returns the session run ID (a UUID).
func (s *SessionManager) GetRunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runID
}

// GetRunNumber returns the numeric run number within the trading date.
func (s *SessionManager) GetRunNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.runNumber
}

// GetSessionStart returns when this session was initialized.
func (s *SessionManager) GetSessionStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessionStart
}

// GetTradingDate returns the current trading date (YYYY-MM-DD).
func (s *SessionManager) GetTradingDate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentDate
}
