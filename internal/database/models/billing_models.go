package models

import "time"

const (
	BillStatusCompleted = "completed"
	BillStatusCancelled = "cancelled"
	BillStatusRefunded  = "refunded"
)

type Bill struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BillNumber string `gorm:"type:varchar(128);uniqueIndex;not null" json:"bill_number"`
	BranchID   string `gorm:"type:varchar(64);index;not null" json:"branch_id"`
	BranchName string `gorm:"type:varchar(128)" json:"branch_name"`
	StaffID    int64  `gorm:"not null" json:"staff_id"`
	StaffName  string `gorm:"type:varchar(128)" json:"staff_name"`

	BillDate time.Time `gorm:"index;not null" json:"bill_date"`

	CustomerName    string  `gorm:"type:varchar(128);not null" json:"customer_name"`
	CustomerPhone   string  `gorm:"type:varchar(32);not null" json:"customer_phone"`
	CustomerEmail   *string `gorm:"type:varchar(128)" json:"customer_email,omitempty"`
	CustomerAddress *string `gorm:"type:text" json:"customer_address,omitempty"`

	GstRate  string `gorm:"type:varchar(8);not null" json:"gst_rate"`
	Discount string `gorm:"type:varchar(8);not null" json:"discount"`

	Subtotal       string `gorm:"type:varchar(32);not null" json:"subtotal"`
	DiscountAmount string `gorm:"type:varchar(32);not null" json:"discount_amount"`
	TaxableAmount  string `gorm:"type:varchar(32);not null" json:"taxable_amount"`
	GstAmount      string `gorm:"type:varchar(32);not null" json:"gst_amount"`
	Total          string `gorm:"type:varchar(32);not null" json:"total"`

	PaymentMethod string  `gorm:"type:varchar(32);not null" json:"payment_method"`
	Status        string  `gorm:"type:varchar(16);not null" json:"status"`
	Notes         *string `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []BillItem `gorm:"foreignKey:BillID" json:"items"`
}

// BillItem snapshots name, brand and price at billing time; later inventory
// edits do not affect issued bills.
type BillItem struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	BillID   int64  `gorm:"index;not null" json:"bill_id"`
	Pid      string `gorm:"type:varchar(64);not null" json:"pid"`
	Name     string `gorm:"type:varchar(128);not null" json:"name"`
	Brand    string `gorm:"type:varchar(64)" json:"brand"`
	Price    string `gorm:"type:varchar(32);not null" json:"price"`
	Quantity int32  `gorm:"not null" json:"quantity"`
	Amount   string `gorm:"type:varchar(32);not null" json:"amount"`
}

// BillSequence is the per-branch counter behind bill numbering. Incremented
// with a single conditional UPDATE so two concurrent bills never share a
// sequence number.
type BillSequence struct {
	BranchID string `gorm:"primaryKey;type:varchar(64)"`
	NextSeq  int64  `gorm:"not null;default:0"`
}
