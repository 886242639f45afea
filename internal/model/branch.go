package model

import (
	"time"

	"github.com/google/uuid"
)

// Branch is a retail location. Exactly one branch carries IsHQ=true and acts
// as the distribution hub: stock always flows HQ → branch. The single-HQ rule
// is enforced by a partial unique index (see infra.applySchemaPatches).
type Branch struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Location  string    `gorm:"not null"`
	IsHQ      bool      `gorm:"column:is_hq;not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Branch) TableName() string { return "branches" }
