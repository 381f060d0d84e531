package models

import "time"

type Branch struct {
	ID         string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	BranchName string  `gorm:"type:varchar(128);not null" json:"branch_name"`
	Address    *string `gorm:"type:text" json:"address,omitempty"`
	Phone      *string `gorm:"type:varchar(32)" json:"phone,omitempty"`
	IsActive   bool    `gorm:"default:true" json:"is_active"`

	CreatedAt *time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Items []InventoryItem `gorm:"foreignKey:BranchID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// InventoryItem is branch-scoped stock: Pid is unique per branch, not globally.
type InventoryItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BranchID    string `gorm:"type:varchar(64);uniqueIndex:idx_branch_pid;not null" json:"branch_id"`
	Pid         string `gorm:"type:varchar(64);uniqueIndex:idx_branch_pid;not null" json:"pid"`
	Name        string `gorm:"type:varchar(128);not null" json:"name"`
	Brand       string `gorm:"type:varchar(64)" json:"brand"`
	Category    string `gorm:"type:varchar(64)" json:"category"`
	SubCategory string `gorm:"type:varchar(64)" json:"sub_category"`
	Price       string `gorm:"type:varchar(32);not null" json:"price"`
	Quantity    int32  `gorm:"not null" json:"quantity"`

	LastUpdated time.Time  `gorm:"not null" json:"last_updated"`
	CreatedAt   *time.Time `gorm:"autoCreateTime" json:"created_at"`
}
