package audit

import (
	"context"
	"encoding/json"
	"testing"

	"lunchbot/internal/storage/storagetest"
)

func TestRepositoryLog(t *testing.T) {
	db := storagetest.NewDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	entry := Entry{
		Actor:        "admin@example.com",
		Role:         "admin",
		Action:       "settings.update",
		ResourceType: "setting",
		ResourceID:   "deadline_time",
		Metadata:     json.RawMessage(`{"deadline_time":"10:30"}`),
		IP:           "127.0.0.1",
		UserAgent:    "curl/8.0",
	}
	if err := repo.Log(ctx, entry); err != nil {
		t.Fatalf("log: %v", err)
	}

	var actor, action, digest string
	err := db.QueryRowContext(ctx, `
SELECT actor, action, payload_digest
FROM audit_logs
WHERE resource_id = $1`, "deadline_time").Scan(&actor, &action, &digest)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if actor != "admin@example.com" || action != "settings.update" {
		t.Fatalf("stored %q/%q, want the logged entry", actor, action)
	}
	if digest != DigestJSON(entry.Metadata) {
		t.Fatalf("digest = %q, want metadata digest", digest)
	}
}

func TestRepositoryLogNilDB(t *testing.T) {
	if NewRepository(nil) != nil {
		t.Fatal("nil db must yield a nil repository")
	}
	var repo *Repository
	if err := repo.Log(context.Background(), Entry{}); err == nil {
		t.Fatal("nil repository must refuse to log")
	}
}

func TestDigestJSON(t *testing.T) {
	if DigestJSON(nil) != "" {
		t.Fatal("empty payload must have empty digest")
	}
	a := DigestJSON([]byte(`{"x":1}`))
	b := DigestJSON([]byte(`{"x":2}`))
	if a == "" || a == b {
		t.Fatalf("digests %q and %q must differ and be non-empty", a, b)
	}
}
