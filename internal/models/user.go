package models

import (
	"time"
)

type User struct {
	ID               uint       `gorm:"primaryKey"`
	TelegramID       int64      `gorm:"uniqueIndex;not null"`
	FirstName        string     `gorm:"size:150"`
	LastName         string     `gorm:"size:150"`
	Username         string     `gorm:"size:150"`
	PhotoURL         string     `gorm:"size:512"`
	Language         string     `gorm:"size:10;not null;default:'ru'"`
	ThemeColor       string     `gorm:"size:50;not null;default:'light'"`
	InvitedByID      *uint      `gorm:"index"`
	InvitedBy        *User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	BirthDate        *time.Time `gorm:"type:date"`
	Address          string
	Hobbies          string
	GiftsGiven       int       `gorm:"not null;default:0"`
	GiftsReceived    int       `gorm:"not null;default:0"`
	RegistrationTime time.Time `gorm:"autoCreateTime;index"`
	LastVisit        time.Time
}

const (
	DefaultLanguage   = "ru"
	DefaultThemeColor = "light"
)
