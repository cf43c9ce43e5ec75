package types

import (
	"context"
	"time"
)

// BaseModel carries the creation metadata shared by persisted models.
type BaseModel struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	UpdatedBy string    `db:"updated_by" json:"updated_by"`
}

func GetDefaultBaseModel(ctx context.Context) BaseModel {
	now := time.Now().UTC()
	actor := GetActorID(ctx)
	return BaseModel{
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: actor,
		UpdatedBy: actor,
	}
}

// GetActorID returns the authenticated user or the system actor.
func GetActorID(ctx context.Context) string {
	if userID := GetUserID(ctx); userID != "" {
		return userID
	}
	return DefaultUserID
}
