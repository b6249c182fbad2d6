package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLoggerRequiresEntity(t *testing.T) {
	db := &memoryExecer{}
	logger := NewAuditLogger(db)

	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "planning.run.executed"}))
	require.Empty(t, db.sql)

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
}

func TestAuditLoggerRecordsEntry(t *testing.T) {
	db := &memoryExecer{}
	logger := NewAuditLogger(db)

	err := logger.Record(context.Background(), AuditLog{
		Action:   "planning.run.executed",
		Entity:   "planning_run",
		EntityID: "7",
		Meta:     map[string]any{"suggestions": 3},
	})
	require.NoError(t, err)
	require.Len(t, db.sql, 1)
	require.Contains(t, db.sql[0], "INSERT INTO audit_logs")
}
