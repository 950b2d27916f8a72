package travelController

import (
	"context"
	"testing"
	"time"

	"relay/config"
	"relay/internal/database"
	. "relay/internal/models"
	"relay/internal/psa"
	"relay/internal/repositories"
	"relay/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePSA struct {
	timeEntries []TimeEntry
	ticketCount int

	expenseItemBatches [][]psa.ExpenseItem
	timeEntryBatches   [][]psa.TravelTimeEntry

	foundReportID   int
	createdReports  []string
	resourceQueries int
}

func (f *fakePSA) QueryResourceByEmail(ctx context.Context, email string) (int, error) {
	f.resourceQueries++
	return 5001, nil
}

func (f *fakePSA) QueryTimeEntries(ctx context.Context, resourceID int, since time.Time) ([]TimeEntry, error) {
	return f.timeEntries, nil
}

func (f *fakePSA) QueryContractsByID(ctx context.Context, contractIDs []int) (map[int]int, error) {
	mapping := map[int]int{11: schoolA.ID, 12: schoolB.ID}
	result := make(map[int]int)
	for _, id := range contractIDs {
		if accountID, ok := mapping[id]; ok {
			result[id] = accountID
		}
	}
	return result, nil
}

func (f *fakePSA) QueryAccountsByID(ctx context.Context, accountIDs []int) ([]Account, error) {
	all := map[int]Account{schoolA.ID: schoolA, schoolB.ID: schoolB}
	var accounts []Account
	for _, id := range accountIDs {
		if account, ok := all[id]; ok {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (f *fakePSA) QueryResourceRoleIDs(ctx context.Context, resourceID int) ([]int, error) {
	return []int{9, 14}, nil
}

func (f *fakePSA) QueryRolesByID(ctx context.Context, roleIDs []int) ([]psa.Role, error) {
	return []psa.Role{
		{ID: 14, Name: "Project Manager"},
		{ID: 9, Name: "Field Technician"},
	}, nil
}

func (f *fakePSA) QueryAnnualProjects(ctx context.Context, yearLabel string, createdAfter time.Time) ([]psa.Project, error) {
	return []psa.Project{
		{ID: 71, AccountID: schoolA.ID, Name: "2026 Annual Project"},
		{ID: 72, AccountID: schoolB.ID, Name: "2026 Annual Project"},
	}, nil
}

func (f *fakePSA) QueryTravelTasks(ctx context.Context, projectIDs []int) (map[int]int, error) {
	return map[int]int{71: 710, 72: 720}, nil
}

func (f *fakePSA) FindExpenseReport(ctx context.Context, name string, submitterID int) (int, bool, error) {
	if f.foundReportID != 0 {
		return f.foundReportID, true, nil
	}
	return 0, false, nil
}

func (f *fakePSA) CreateExpenseReport(ctx context.Context, name string, submitterID int, weekEnding time.Time) (int, error) {
	f.createdReports = append(f.createdReports, name)
	return 301, nil
}

func (f *fakePSA) CreateExpenseItems(ctx context.Context, items []psa.ExpenseItem) (int, error) {
	f.expenseItemBatches = append(f.expenseItemBatches, items)
	return len(items), nil
}

func (f *fakePSA) CreateTimeEntries(ctx context.Context, entries []psa.TravelTimeEntry) (int, error) {
	f.timeEntryBatches = append(f.timeEntryBatches, entries)
	return len(entries), nil
}

func (f *fakePSA) CountMatchingExpenseReports(ctx context.Context, submitterID int, checks []ExpenseReportCheck) (int, error) {
	return len(checks), nil
}

func (f *fakePSA) CountMatchingTickets(ctx context.Context, checks []TicketCheck) (int, error) {
	return f.ticketCount, nil
}

func testConfig() config.Config {
	return config.Config{
		DollarsPerMile:           0.58,
		ExpenseTitle:             "Gas Expenses",
		TravelDescription:        "Travel from",
		LogFirstTravelEntryOfDay: true,
		LogLastTravelEntryOfDay:  true,
	}
}

func newTestController(t *testing.T, fake *fakePSA) *TravelController {
	t.Helper()

	controller := New(
		fake,
		repositories.NewDistance(database.DB{}),
		repositories.NewAccount(database.DB{}),
		repositories.NewSubmission(database.DB{}),
		services.NewMatchService(),
		&fakeMatrixClient{distanceMeters: 16080, durationSecs: 1800},
		nil,
		nil,
		testConfig(),
	)
	controller.now = func() time.Time {
		return time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)
	}
	return controller
}

func testFakePSA() *fakePSA {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &fakePSA{
		ticketCount: 1,
		timeEntries: []TimeEntry{
			entry(1, 11, day.Add(9*time.Hour), day.Add(10*time.Hour)),
			entry(2, 11, day.Add(10*time.Hour+45*time.Minute), day.Add(11*time.Hour+30*time.Minute)),
			entry(3, 12, day.Add(13*time.Hour), day.Add(14*time.Hour)),
		},
	}
}

func testRequest() *TravelRequest {
	return &TravelRequest{
		RequestID:     "req-1",
		Email:         "tech@example.com",
		HomeAddress:   testHomeAddress,
		AuthToken:     "token-abc",
		RecentTickets: []TicketCheck{{TicketNumber: "T20260302.0001", HoursWorked: 1}},
	}
}

func TestSubmitTravelTimes(t *testing.T) {
	fake := testFakePSA()
	controller := newTestController(t, fake)

	result, err := controller.SubmitTravelTimes(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	assert.Zero(t, result.SkippedCached)

	require.Len(t, fake.timeEntryBatches, 1)
	entries := fake.timeEntryBatches[0]
	require.Len(t, entries, 3)

	// Every entry is billed with the field role against the destination
	// account's annual project travel task.
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 9, entries[0].RoleID)
	assert.Equal(t, 710, entries[0].TaskID)
	assert.Equal(t, day.Add(8*time.Hour+30*time.Minute), entries[0].StartDateTime)
	assert.Equal(t, day.Add(9*time.Hour), entries[0].EndDateTime)

	assert.Equal(t, 720, entries[1].TaskID)
	assert.Equal(t, day.Add(11*time.Hour+30*time.Minute), entries[1].StartDateTime)

	// The trip home bills to the origin account's project.
	assert.Equal(t, 720, entries[2].TaskID)
	assert.Equal(t, "Travel from Decatur Middle School to Home", entries[2].SummaryNotes)
}

func TestSubmitTravelTimesSkipsAlreadySubmitted(t *testing.T) {
	fake := testFakePSA()
	controller := newTestController(t, fake)
	ctx := context.Background()

	_, err := controller.SubmitTravelTimes(ctx, testRequest())
	require.NoError(t, err)

	result, err := controller.SubmitTravelTimes(ctx, testRequest())
	require.NoError(t, err)

	assert.Zero(t, result.Created)
	assert.Equal(t, 3, result.SkippedCached)
	assert.Len(t, fake.timeEntryBatches, 1)

	warned := false
	for _, logLine := range result.Logs {
		if logLine.Status == StatusWarning {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestSubmitTravelTimesIgnoreCacheResubmits(t *testing.T) {
	fake := testFakePSA()
	controller := newTestController(t, fake)
	ctx := context.Background()

	_, err := controller.SubmitTravelTimes(ctx, testRequest())
	require.NoError(t, err)

	request := testRequest()
	request.IgnoreCache = true
	result, err := controller.SubmitTravelTimes(ctx, request)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)
	assert.Len(t, fake.timeEntryBatches, 2)
}

func TestSubmitTravelTimesTogglesSkipHomeLegs(t *testing.T) {
	fake := testFakePSA()
	controller := newTestController(t, fake)
	controller.config.LogFirstTravelEntryOfDay = false
	controller.config.LogLastTravelEntryOfDay = false

	result, err := controller.SubmitTravelTimes(context.Background(), testRequest())
	require.NoError(t, err)

	// Only the school-to-school leg survives.
	assert.Equal(t, 1, result.Created)
	require.Len(t, fake.timeEntryBatches, 1)
	require.Len(t, fake.timeEntryBatches[0], 1)
	assert.Equal(t, 720, fake.timeEntryBatches[0][0].TaskID)
}

func TestSubmitExpenseReports(t *testing.T) {
	fake := testFakePSA()
	controller := newTestController(t, fake)

	result, err := controller.SubmitExpenseReports(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Created)

	// No existing report for the month, so one was created for it.
	require.Len(t, fake.createdReports, 1)
	assert.Equal(t, "Gas Expenses for March 2026", fake.createdReports[0])

	require.Len(t, fake.expenseItemBatches, 1)
	items := fake.expenseItemBatches[0]
	require.Len(t, items, 3)

	for _, item := range items {
		assert.Equal(t, 301, item.ExpenseReportID)
		assert.Equal(t, 10, item.Miles)
		assert.InDelta(t, 5.8, item.ReceiptAmount, 0.001)
	}
	assert.Equal(t, schoolA.ID, items[0].AccountID)
	assert.Equal(t, "Travel from Home to Springfield Elementary", items[0].Description)

	// The trip home is billed to the origin school.
	assert.Equal(t, schoolB.ID, items[2].AccountID)
}

func TestSubmitExpenseReportsReusesExistingReport(t *testing.T) {
	fake := testFakePSA()
	fake.foundReportID = 808
	controller := newTestController(t, fake)

	_, err := controller.SubmitExpenseReports(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Empty(t, fake.createdReports)
	require.Len(t, fake.expenseItemBatches, 1)
	assert.Equal(t, 808, fake.expenseItemBatches[0][0].ExpenseReportID)
}

func TestAuthenticateRejectsMismatchedVerification(t *testing.T) {
	fake := testFakePSA()
	fake.ticketCount = 0
	controller := newTestController(t, fake)

	result := &SubmissionResult{}
	_, err := controller.Authenticate(context.Background(), testRequest(), result)

	require.Error(t, err)
	require.NotEmpty(t, result.Logs)
	assert.Equal(t, StatusError, result.Logs[len(result.Logs)-1].Status)
}

func TestAuthenticateRejectsMissingVerificationData(t *testing.T) {
	fake := testFakePSA()
	controller := newTestController(t, fake)

	request := testRequest()
	request.RecentTickets = nil

	_, err := controller.Authenticate(context.Background(), request, &SubmissionResult{})
	assert.Error(t, err)
}

func TestAuthenticateCachesToken(t *testing.T) {
	fake := testFakePSA()
	fake.ticketCount = 1
	controller := newTestController(t, fake)
	ctx := context.Background()

	request := testRequest()
	resourceID, err := controller.Authenticate(ctx, request, &SubmissionResult{})
	require.NoError(t, err)
	assert.Equal(t, 5001, resourceID)

	// A verified token skips both the resource query and the verification on
	// repeat requests, even without verification data.
	fake.ticketCount = 0
	repeat := testRequest()
	repeat.RecentTickets = nil

	resourceID, err = controller.Authenticate(ctx, repeat, &SubmissionResult{})
	require.NoError(t, err)
	assert.Equal(t, 5001, resourceID)
	assert.Equal(t, 1, fake.resourceQueries)
}

func TestAuthenticateRejectsWrongToken(t *testing.T) {
	fake := testFakePSA()
	fake.ticketCount = 1
	controller := newTestController(t, fake)
	ctx := context.Background()

	_, err := controller.Authenticate(ctx, testRequest(), &SubmissionResult{})
	require.NoError(t, err)

	// A different token with no verification data is rejected.
	fake.ticketCount = 0
	wrong := testRequest()
	wrong.AuthToken = "stolen-token"
	wrong.RecentTickets = nil

	_, err = controller.Authenticate(ctx, wrong, &SubmissionResult{})
	assert.Error(t, err)
}

func TestAnnualProjectWindow(t *testing.T) {
	tests := []struct {
		name          string
		now           time.Time
		expectedLabel string
		expectedYear  int
	}{
		{
			name:          "Spring uses current year label",
			now:           time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
			expectedLabel: "2026 Annual Project",
			expectedYear:  2025,
		},
		{
			name:          "Fall rolls to next year label",
			now:           time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
			expectedLabel: "2027 Annual Project",
			expectedYear:  2026,
		},
		{
			name:          "August is the school year boundary",
			now:           time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			expectedLabel: "2027 Annual Project",
			expectedYear:  2026,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, createdAfter := annualProjectWindow(tt.now)
			assert.Equal(t, tt.expectedLabel, label)
			assert.Equal(t, tt.expectedYear, createdAfter.Year())
			assert.Equal(t, time.January, createdAfter.Month())
		})
	}
}

func TestWindowStarts(t *testing.T) {
	// Friday March 6th 2026.
	now := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	monday := lastMonday(now)
	assert.Equal(t, time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), monday)

	// March 1st 2026 is a Sunday; the expense window opens the Monday before.
	monthWeek := startOfMonthWeek(now)
	assert.Equal(t, time.Date(2026, 2, 23, 1, 0, 0, 0, time.UTC), monthWeek)

	// A Monday is its own window start.
	assert.Equal(t,
		time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC),
		lastMonday(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
	)
}
