package database

import (
	"sync"
	"testing"

	"confidential-market/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

func TestAutoMigrate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := AutoMigrate(db, zap.NewNop()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	for _, m := range Models() {
		if !db.Migrator().HasTable(m) {
			t.Errorf("expected table for %T", m)
		}
	}
	if !db.Migrator().HasIndex(&models.Participation{}, "idx_participation_market_participant") {
		t.Error("expected unique participation index")
	}
	if !db.Migrator().HasColumn(&models.AdminLog{}, "Details") {
		t.Error("expected admin_logs.details column")
	}
}

func TestJSONBFieldParses(t *testing.T) {
	s, err := schema.Parse(&models.AdminLog{}, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("failed to parse AdminLog: %v", err)
	}
	field := s.LookUpField("Details")
	if field == nil {
		t.Fatal("expected Details field")
	}
	if field.DataType != "json" {
		t.Errorf("expected data type json, got %q", field.DataType)
	}
}
