package status

import (
	"os"
	"testing"

	"github.com/avalanche-sched/avalanche/scheduler"
)

// MySQLService tests need a live server and are skipped unless
// TEST_MYSQL_DSN is set, e.g.:
//
//	export TEST_MYSQL_DSN="user:pass@tcp(127.0.0.1:3306)/avalanche_test?parseTime=true"

func getTestMySQLDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Log("Skipping MySQLService tests: TEST_MYSQL_DSN not set")
	}
	return dsn
}

func TestMySQLService_RecordAndReadAlgResult(t *testing.T) {
	dsn := getTestMySQLDSN(t)
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	s, err := NewMySQLService(dsn)
	if err != nil {
		t.Fatalf("NewMySQLService: %v", err)
	}
	defer s.Close()

	c := ec(0, 1, 1)
	s.RecordAlgResult("TrackFinder", c, false, true)

	got := s.AlgExecState("TrackFinder", c)
	if got.Failed || !got.FilterPassed {
		t.Errorf("AlgExecState = %+v, want {Failed:false FilterPassed:true}", got)
	}
}

func TestMySQLService_EventStatusDefaultsSuccess(t *testing.T) {
	dsn := getTestMySQLDSN(t)
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	s, err := NewMySQLService(dsn)
	if err != nil {
		t.Fatalf("NewMySQLService: %v", err)
	}
	defer s.Close()

	if got := s.EventStatus(ec(0, 99, 1)); got != scheduler.OutcomeSuccess {
		t.Errorf("EventStatus default = %v, want OutcomeSuccess", got)
	}
}

func TestMySQLService_UpdateEventStatusOnlyNarrowsToFailure(t *testing.T) {
	dsn := getTestMySQLDSN(t)
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	s, err := NewMySQLService(dsn)
	if err != nil {
		t.Fatalf("NewMySQLService: %v", err)
	}
	defer s.Close()

	c := ec(0, 2, 1)
	s.UpdateEventStatus(true, c)
	if got := s.EventStatus(c); got != scheduler.OutcomeAlgorithmFailure {
		t.Errorf("EventStatus after UpdateEventStatus(true) = %v, want OutcomeAlgorithmFailure", got)
	}
}

func TestMySQLService_SetEventStatusOverwrites(t *testing.T) {
	dsn := getTestMySQLDSN(t)
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	s, err := NewMySQLService(dsn)
	if err != nil {
		t.Fatalf("NewMySQLService: %v", err)
	}
	defer s.Close()

	c := ec(0, 3, 1)
	s.SetEventStatus(scheduler.OutcomeAlgStall, c)
	s.SetEventStatus(scheduler.OutcomeSuccess, c)
	if got := s.EventStatus(c); got != scheduler.OutcomeSuccess {
		t.Errorf("EventStatus = %v, want OutcomeSuccess", got)
	}
}

func TestMySQLService_InvalidDSN(t *testing.T) {
	if _, err := NewMySQLService("not a valid dsn :::"); err == nil {
		t.Error("NewMySQLService with invalid DSN should fail")
	}
}
