package database

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildReport(t *testing.T) {
	stats := sql.DBStats{OpenConnections: 5, InUse: 2, Idle: 3}

	report := buildReport(nil, 1500*time.Microsecond, stats)
	if report.Status != "ok" {
		t.Errorf("Status = %s, expected ok", report.Status)
	}
	if report.LatencyMS != 1.5 {
		t.Errorf("LatencyMS = %v, expected 1.5", report.LatencyMS)
	}
	if report.OpenConns != 5 || report.InUse != 2 || report.Idle != 3 {
		t.Errorf("Pool stats = %+v", report)
	}

	report = buildReport(errors.New("connection refused"), time.Second, stats)
	if report.Status != "degraded" {
		t.Errorf("Status = %s, expected degraded", report.Status)
	}
}

func TestTruncateQuery(t *testing.T) {
	short := "SELECT 1"
	if got := truncateQuery(short); got != short {
		t.Errorf("truncateQuery(short) = %q", got)
	}

	long := strings.Repeat("x", 300)
	got := truncateQuery(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateQuery(long) length = %d", len(got))
	}
}
