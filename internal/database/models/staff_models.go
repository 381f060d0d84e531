package models

import "time"

const (
	RoleStaff      = "staff"
	RoleManager    = "manager"
	RoleSuperadmin = "superadmin"
)

type Staff struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BranchID   string `gorm:"type:varchar(64);index;not null" json:"branch_id"`
	StaffName  string `gorm:"type:varchar(128);not null" json:"staff_name"`
	Email      string `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Password   string `gorm:"not null" json:"-"`
	Role       string `gorm:"type:varchar(16);not null" json:"role"`
	Position   string `gorm:"type:varchar(64)" json:"position"`
	Phone      string `gorm:"type:varchar(32)" json:"phone"`
	BaseSalary string `gorm:"type:varchar(32);not null" json:"base_salary"`
	IsActive   bool   `gorm:"default:true" json:"is_active"`

	CreatedAt *time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Attendance struct {
	ID       int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID  int64      `gorm:"uniqueIndex:idx_staff_day;not null" json:"staff_id"`
	Date     string     `gorm:"type:varchar(10);uniqueIndex:idx_staff_day;not null" json:"date"`
	CheckIn  time.Time  `gorm:"not null" json:"check_in"`
	CheckOut *time.Time `json:"check_out,omitempty"`
	Status   string     `gorm:"type:varchar(16);not null" json:"status"`

	CreatedAt *time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type SalaryRecord struct {
	ID           int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID      int64   `gorm:"uniqueIndex:idx_staff_period;not null" json:"staff_id"`
	Period       string  `gorm:"type:varchar(7);uniqueIndex:idx_staff_period;not null" json:"period"`
	BaseSalary   string  `gorm:"type:varchar(32);not null" json:"base_salary"`
	IncrementPct string  `gorm:"type:varchar(8);not null" json:"increment_pct"`
	NetSalary    string  `gorm:"type:varchar(32);not null" json:"net_salary"`
	Notes        *string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt *time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Appraisal struct {
	ID         int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	StaffID    int64   `gorm:"uniqueIndex:idx_appraisal_period;not null" json:"staff_id"`
	Period     string  `gorm:"type:varchar(7);uniqueIndex:idx_appraisal_period;not null" json:"period"`
	Rating     int32   `gorm:"not null" json:"rating"`
	Remarks    *string `gorm:"type:text" json:"remarks,omitempty"`
	ReviewedBy int64   `gorm:"not null" json:"reviewed_by"`

	CreatedAt *time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type Complaint struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BranchID    string `gorm:"type:varchar(64);index;not null" json:"branch_id"`
	Subject     string `gorm:"type:varchar(256);not null" json:"subject"`
	Description string `gorm:"type:text" json:"description"`
	Status      string `gorm:"type:varchar(16);not null;default:'open'" json:"status"`
	RaisedBy    int64  `gorm:"not null" json:"raised_by"`

	CreatedAt *time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
