// Package testutil builds isolated stores and clocks for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/migration"
	"github.com/smallbiznis/assessly/pkg/db"
	"gorm.io/gorm"
)

// Epoch is the fake clock's starting instant in every test environment.
var Epoch = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type Env struct {
	DB    *gorm.DB
	Node  *snowflake.Node
	Clock *clock.FakeClock
}

func New(t testing.TB) *Env {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	return &Env{
		DB:    conn,
		Node:  node,
		Clock: clock.NewFakeClock(Epoch),
	}
}

// SetInviteExpiry moves an invite's deadline without going through the state machine.
func (e *Env) SetInviteExpiry(t testing.TB, inviteID snowflake.ID, expiresAt time.Time) {
	t.Helper()
	err := e.DB.WithContext(context.Background()).Exec(
		`UPDATE invites SET expires_at = ? WHERE id = ?`,
		expiresAt.UTC(), inviteID,
	).Error
	if err != nil {
		t.Fatalf("set invite expiry: %v", err)
	}
}

// CountRows returns the number of rows in table matching the optional condition.
func (e *Env) CountRows(t testing.TB, table string, where string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := e.DB.Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&count).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return count
}
