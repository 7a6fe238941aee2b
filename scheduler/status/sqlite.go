package status

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/avalanche-sched/avalanche/scheduler"
)

// SQLiteService is a modernc.org/sqlite-backed ExecutionStatusService, for
// single-process deployments and local development where a MySQL server is
// overkill. Same two-table schema as MySQLService.
type SQLiteService struct {
	db *sql.DB
}

// NewSQLiteService opens path (":memory:" for an ephemeral in-process
// database) and creates the service tables if they don't already exist.
func NewSQLiteService(path string) (*SQLiteService, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("status: open sqlite: %w", err)
	}
	// modernc.org/sqlite serializes writes at the driver level; a single
	// connection avoids "database is locked" errors under concurrent access.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("status: ping sqlite: %w", err)
	}

	s := &SQLiteService{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("status: create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteService) createTables(ctx context.Context) error {
	algTable := `
		CREATE TABLE IF NOT EXISTS alg_results (
			slot_index INTEGER NOT NULL,
			event_num INTEGER NOT NULL,
			epoch INTEGER NOT NULL,
			alg_name TEXT NOT NULL,
			failed INTEGER NOT NULL,
			filter_passed INTEGER NOT NULL,
			PRIMARY KEY (slot_index, event_num, epoch, alg_name)
		)
	`
	eventTable := `
		CREATE TABLE IF NOT EXISTS event_outcomes (
			slot_index INTEGER NOT NULL,
			event_num INTEGER NOT NULL,
			epoch INTEGER NOT NULL,
			outcome INTEGER NOT NULL,
			PRIMARY KEY (slot_index, event_num, epoch)
		)
	`
	if _, err := s.db.ExecContext(ctx, algTable); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, eventTable)
	return err
}

// RecordAlgResult implements scheduler.ExecutionStatusService.
func (s *SQLiteService) RecordAlgResult(algName string, ec *scheduler.EventContext, failed, filterPassed bool) {
	ctx := context.Background()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO alg_results (slot_index, event_num, epoch, alg_name, failed, filter_passed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (slot_index, event_num, epoch, alg_name)
		DO UPDATE SET failed = excluded.failed, filter_passed = excluded.filter_passed
	`, ec.SlotIndex, ec.EventNum, ec.Epoch, algName, failed, filterPassed)
}

// UpdateEventStatus implements scheduler.ExecutionStatusService, inserting
// an AlgorithmFailure row only if this (slot,event,epoch) has no row yet.
func (s *SQLiteService) UpdateEventStatus(failed bool, ec *scheduler.EventContext) {
	if !failed {
		return
	}
	ctx := context.Background()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO event_outcomes (slot_index, event_num, epoch, outcome)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (slot_index, event_num, epoch) DO NOTHING
	`, ec.SlotIndex, ec.EventNum, ec.Epoch, int(scheduler.OutcomeAlgorithmFailure))
}

// EventStatus implements scheduler.ExecutionStatusService, defaulting to
// Success when no row exists.
func (s *SQLiteService) EventStatus(ec *scheduler.EventContext) scheduler.EventOutcome {
	ctx := context.Background()
	var outcome int
	err := s.db.QueryRowContext(ctx, `
		SELECT outcome FROM event_outcomes WHERE slot_index = ? AND event_num = ? AND epoch = ?
	`, ec.SlotIndex, ec.EventNum, ec.Epoch).Scan(&outcome)
	if err != nil {
		return scheduler.OutcomeSuccess
	}
	return scheduler.EventOutcome(outcome)
}

// AlgExecState implements scheduler.ExecutionStatusService.
func (s *SQLiteService) AlgExecState(algName string, ec *scheduler.EventContext) scheduler.AlgExecState {
	ctx := context.Background()
	var failed, filterPassed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT failed, filter_passed FROM alg_results
		WHERE slot_index = ? AND event_num = ? AND epoch = ? AND alg_name = ?
	`, ec.SlotIndex, ec.EventNum, ec.Epoch, algName).Scan(&failed, &filterPassed)
	if err != nil {
		return scheduler.AlgExecState{}
	}
	return scheduler.AlgExecState{Failed: failed, FilterPassed: filterPassed}
}

// SetEventStatus implements scheduler.ExecutionStatusService, overwriting
// whatever outcome was previously recorded.
func (s *SQLiteService) SetEventStatus(kind scheduler.EventOutcome, ec *scheduler.EventContext) {
	ctx := context.Background()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO event_outcomes (slot_index, event_num, epoch, outcome)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (slot_index, event_num, epoch) DO UPDATE SET outcome = excluded.outcome
	`, ec.SlotIndex, ec.EventNum, ec.Epoch, int(kind))
}

// Close releases the underlying database handle.
func (s *SQLiteService) Close() error { return s.db.Close() }
