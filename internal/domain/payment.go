package domain

import "time"

// PaymentStatus tracks a payment through wallet approval.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentPaid     PaymentStatus = "paid"
)

// PaymentRecord is the settlement artifact of a completed job.
type PaymentRecord struct {
	ID          string        `json:"id" db:"id"`
	JobID       string        `json:"jobId" db:"job_id"`
	LaborerID   string        `json:"laborerId" db:"laborer_id"`
	CustomerID  string        `json:"customerId" db:"customer_id"`
	Amount      int64         `json:"amount" db:"amount"`
	PlatformFee int64         `json:"platformFee" db:"platform_fee"`
	NetAmount   int64         `json:"netAmount" db:"net_amount"`
	Status      PaymentStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
}
