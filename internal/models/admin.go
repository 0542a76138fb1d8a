package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONB for PostgreSQL JSON support
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (JSONB) GormDataType() string {
	return "json"
}

// GormDBDataType stores JSONB natively on postgres and as text elsewhere.
func (JSONB) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(raw, j)
}

// AdminUser is a wallet allowed to use the administrative interface
type AdminUser struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Wallet    string    `gorm:"uniqueIndex;size:64;not null" json:"wallet"`
	Role      string    `gorm:"size:20;not null" json:"role"` // SUPER_ADMIN
	CreatedAt time.Time `json:"created_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}

// AdminLog tracks admin actions
type AdminLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Admin     string    `gorm:"size:64;not null;index" json:"admin"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Target    string    `gorm:"size:64" json:"target"`
	Details   JSONB     `json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (AdminLog) TableName() string {
	return "admin_logs"
}

const (
	RoleSuperAdmin = "SUPER_ADMIN"
)
