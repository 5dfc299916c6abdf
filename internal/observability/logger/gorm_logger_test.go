package logger

import "testing"

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM invites":                        "SELECT",
		"  update invites set status = 'started'":      "UPDATE",
		"WITH x AS (SELECT 1) DELETE FROM invites":     "SELECT",
		"INSERT INTO lifecycle_events (id) VALUES (?)": "INSERT",
		"":                         "UNKNOWN",
		"PRAGMA foreign_keys = ON": "UNKNOWN",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", sql, got, want)
		}
	}
}
