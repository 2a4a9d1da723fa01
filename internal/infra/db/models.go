package db

import "time"

type UserModel struct {
	ID                int64  `gorm:"primaryKey"`
	Username          string `gorm:"uniqueIndex;not null"`
	Email             string `gorm:"uniqueIndex;not null"`
	Role              string `gorm:"not null"`
	StationID         *int64 `gorm:"index"`
	StationAcronym    *string
	Active            bool `gorm:"not null;default:true"`
	LastExternalLogin *time.Time
	CreatedAt         time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type PilotModel struct {
	ID       int64  `gorm:"primaryKey"`
	FullName string `gorm:"not null"`
	Email    string `gorm:"uniqueIndex;not null"`
	// AuthorizedStations is a JSON array of station codes, e.g. ["SVB","ANS"].
	AuthorizedStations *string   `gorm:"type:jsonb"`
	Active             bool      `gorm:"not null;default:true"`
	CreatedAt          time.Time `gorm:"not null"`
}

func (PilotModel) TableName() string { return "uav_pilots" }

type StationModel struct {
	ID        int64     `gorm:"primaryKey"`
	Acronym   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (StationModel) TableName() string { return "stations" }
