package models

// ExpenseReportCheck is a verification triplet the extension scrapes from the
// PSA's own UI so the relay can confirm the caller really sees that account's
// data before acting on their behalf.
type ExpenseReportCheck struct {
	Name         string  `json:"name"`
	PeriodEnding string  `json:"periodEnding"`
	AmountDue    float64 `json:"amountDue"`
}

// TicketCheck is the time-entry flavor of the same verification.
type TicketCheck struct {
	TicketNumber string  `json:"ticketNumber"`
	HoursWorked  float64 `json:"hoursWorked"`
}

// TravelRequest is a submission request from the extension. Either
// RecentExpenseReports or RecentTickets must be present the first time an
// email authenticates; afterwards the cached auth token is enough.
type TravelRequest struct {
	RequestID   string `json:"requestId"`
	Email       string `json:"email"`
	HomeAddress string `json:"homeAddress"`
	AuthToken   string `json:"authToken"`
	IgnoreCache bool   `json:"writeAgain"`

	RecentExpenseReports []ExpenseReportCheck `json:"recentExpenseReports"`
	RecentTickets        []TicketCheck        `json:"recentTickets"`
}

func (r *TravelRequest) Validate() error {
	switch {
	case r.Email == "":
		return &ValidationError{Field: "email"}
	case r.HomeAddress == "":
		return &ValidationError{Field: "homeAddress"}
	case r.AuthToken == "":
		return &ValidationError{Field: "authToken"}
	}
	return nil
}

// ValidationError names the first missing required field of a request.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}
