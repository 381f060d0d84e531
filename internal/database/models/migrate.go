package models

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Branch{},
		&InventoryItem{},
		&Bill{},
		&BillItem{},
		&BillSequence{},
		&Staff{},
		&Attendance{},
		&SalaryRecord{},
		&Appraisal{},
		&Complaint{},
	)
}
