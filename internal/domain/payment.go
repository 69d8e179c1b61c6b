package domain

import (
	"time"
)

// PaymentPlan is a scheduled incoming client payment. Plans carry a stable
// external id so spreadsheet rows can be matched across publish/import.
type PaymentPlan struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StablePayID string    `gorm:"column:stable_pay_id;size:64;not null;uniqueIndex:idx_plan_project_stable,composite:project_id" json:"stable_pay_id"`
	ProjectID   int64     `gorm:"column:project_id;not null;index;uniqueIndex:idx_plan_project_stable" json:"project_id"`
	PayDate     time.Time `gorm:"column:pay_date;type:date;not null" json:"pay_date"`
	Amount      float64   `gorm:"column:amount;type:decimal(18,2);not null;default:0" json:"amount"`
	Note        string    `gorm:"column:note;size:512;not null;default:''" json:"note"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentPlan) TableName() string {
	return "client_payments_plan"
}

// PaymentFact is a received client payment. Facts have no stable id: once
// money arrived the row is history, not a spreadsheet-editable plan.
type PaymentFact struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ProjectID int64     `gorm:"column:project_id;not null;index" json:"project_id"`
	PayDate   time.Time `gorm:"column:pay_date;type:date;not null" json:"pay_date"`
	Amount    float64   `gorm:"column:amount;type:decimal(18,2);not null;default:0" json:"amount"`
	Note      string    `gorm:"column:note;size:512;not null;default:''" json:"note"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PaymentFact) TableName() string {
	return "client_payments_fact"
}
