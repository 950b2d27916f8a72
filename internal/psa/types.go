package psa

import "time"

// Entry type values the PSA assigns to time entries. Travel entries are
// excluded from extrapolation input so already-generated trips never feed
// back into the pipeline.
const (
	EntryTypeTravel = 6

	// Travel time entries are created with this type.
	entryTypeTravelTime = 12
)

// Expense item field values for mileage submissions.
const (
	expenseCategoryMileage = 2
	paymentTypeOther       = 14
)

type Role struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID        int    `json:"id"`
	AccountID int    `json:"accountID"`
	Name      string `json:"name"`
}

// ExpenseItem is one mileage line of an expense report.
type ExpenseItem struct {
	AccountID       int       `json:"accountID"`
	ExpenseReportID int       `json:"expenseReportID"`
	ReceiptAmount   float64   `json:"receiptAmount"`
	Billable        bool      `json:"billableToAccount"`
	Description     string    `json:"description"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	ExpenseCategory int       `json:"expenseCategory"`
	ExpenseDate     time.Time `json:"expenseDate"`
	HaveReceipt     bool      `json:"haveReceipt"`
	Miles           int       `json:"miles"`
	PaymentType     int       `json:"paymentType"`
}

// TravelTimeEntry is one travel time entry to create.
type TravelTimeEntry struct {
	DateWorked    time.Time `json:"dateWorked"`
	StartDateTime time.Time `json:"startDateTime"`
	EndDateTime   time.Time `json:"endDateTime"`
	ResourceID    int       `json:"resourceID"`
	RoleID        int       `json:"roleID"`
	TaskID        int       `json:"taskID"`
	SummaryNotes  string    `json:"summaryNotes"`
	EntryType     int       `json:"type"`
}

