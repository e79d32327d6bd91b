package models

import "time"

// SequenceCounter backs per-day document numbers when Redis is unavailable.
type SequenceCounter struct {
	Scope     string    `gorm:"column:scope;primaryKey"`
	Day       string    `gorm:"column:day;primaryKey"`
	Value     int64     `gorm:"column:value;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
