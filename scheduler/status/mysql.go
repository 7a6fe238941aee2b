package status

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/avalanche-sched/avalanche/scheduler"
)

// MySQLService is a MySQL/MariaDB-backed ExecutionStatusService. It keeps
// two narrow tables: one row per (slot, event, epoch, algorithm) result,
// one row per (slot, event, epoch) terminal outcome.
type MySQLService struct {
	db *sql.DB
}

// NewMySQLService opens dsn, verifies connectivity, and creates the service
// tables if they don't already exist.
//
// Example DSN: user:password@tcp(127.0.0.1:3306)/avalanche?parseTime=true
func NewMySQLService(dsn string) (*MySQLService, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("status: open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("status: ping mysql: %w", err)
	}

	s := &MySQLService{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("status: create tables: %w", err)
	}
	return s, nil
}

func (s *MySQLService) createTables(ctx context.Context) error {
	algTable := `
		CREATE TABLE IF NOT EXISTS alg_results (
			slot_index INT NOT NULL,
			event_num BIGINT NOT NULL,
			epoch BIGINT NOT NULL,
			alg_name VARCHAR(255) NOT NULL,
			failed BOOLEAN NOT NULL,
			filter_passed BOOLEAN NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (slot_index, event_num, epoch, alg_name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	eventTable := `
		CREATE TABLE IF NOT EXISTS event_outcomes (
			slot_index INT NOT NULL,
			event_num BIGINT NOT NULL,
			epoch BIGINT NOT NULL,
			outcome INT NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (slot_index, event_num, epoch)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`
	if _, err := s.db.ExecContext(ctx, algTable); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, eventTable)
	return err
}

// RecordAlgResult implements scheduler.ExecutionStatusService.
func (s *MySQLService) RecordAlgResult(algName string, ec *scheduler.EventContext, failed, filterPassed bool) {
	ctx := context.Background()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO alg_results (slot_index, event_num, epoch, alg_name, failed, filter_passed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE failed = VALUES(failed), filter_passed = VALUES(filter_passed)
	`, ec.SlotIndex, ec.EventNum, ec.Epoch, algName, failed, filterPassed)
}

// UpdateEventStatus implements scheduler.ExecutionStatusService, inserting
// an AlgorithmFailure row only if this (slot,event,epoch) has no row yet.
func (s *MySQLService) UpdateEventStatus(failed bool, ec *scheduler.EventContext) {
	if !failed {
		return
	}
	ctx := context.Background()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO event_outcomes (slot_index, event_num, epoch, outcome)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE outcome = outcome
	`, ec.SlotIndex, ec.EventNum, ec.Epoch, int(scheduler.OutcomeAlgorithmFailure))
}

// EventStatus implements scheduler.ExecutionStatusService, defaulting to
// Success when no row exists.
func (s *MySQLService) EventStatus(ec *scheduler.EventContext) scheduler.EventOutcome {
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
func (s *MySQLService) AlgExecState(algName string, ec *scheduler.EventContext) scheduler.AlgExecState {
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
func (s *MySQLService) SetEventStatus(kind scheduler.EventOutcome, ec *scheduler.EventContext) {
	ctx := context.Background()
	_, _ = s.db.ExecContext(ctx, `
		INSERT INTO event_outcomes (slot_index, event_num, epoch, outcome)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE outcome = VALUES(outcome)
	`, ec.SlotIndex, ec.EventNum, ec.Epoch, int(kind))
}

// Close releases the underlying connection pool.
func (s *MySQLService) Close() error { return s.db.Close() }
