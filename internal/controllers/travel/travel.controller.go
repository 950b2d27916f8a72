package travelController

import (
	"context"
	"fmt"
	"math"
	"relay/config"
	"relay/internal/logger"
	. "relay/internal/models"
	"relay/internal/psa"
	"relay/internal/repositories"
	"relay/internal/services"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PSAClient is the upstream ticketing API surface the pipeline consumes.
type PSAClient interface {
	QueryResourceByEmail(ctx context.Context, email string) (int, error)
	QueryTimeEntries(ctx context.Context, resourceID int, since time.Time) ([]TimeEntry, error)
	QueryContractsByID(ctx context.Context, contractIDs []int) (map[int]int, error)
	QueryAccountsByID(ctx context.Context, accountIDs []int) ([]Account, error)
	QueryResourceRoleIDs(ctx context.Context, resourceID int) ([]int, error)
	QueryRolesByID(ctx context.Context, roleIDs []int) ([]psa.Role, error)
	QueryAnnualProjects(ctx context.Context, yearLabel string, createdAfter time.Time) ([]psa.Project, error)
	QueryTravelTasks(ctx context.Context, projectIDs []int) (map[int]int, error)
	FindExpenseReport(ctx context.Context, name string, submitterID int) (int, bool, error)
	CreateExpenseReport(ctx context.Context, name string, submitterID int, weekEnding time.Time) (int, error)
	CreateExpenseItems(ctx context.Context, items []psa.ExpenseItem) (int, error)
	CreateTimeEntries(ctx context.Context, entries []psa.TravelTimeEntry) (int, error)
	CountMatchingExpenseReports(ctx context.Context, submitterID int, checks []ExpenseReportCheck) (int, error)
	CountMatchingTickets(ctx context.Context, checks []TicketCheck) (int, error)
}

// WSManager pushes pipeline progress to the caller's websocket, if connected.
type WSManager interface {
	SendTravelProgress(requestID string, data map[string]any)
}

type RequestStatus string

const (
	StatusSuccess RequestStatus = "Success"
	StatusWarning RequestStatus = "Warning"
	StatusError   RequestStatus = "Error"
)

// RequestLog is one human-readable line of the per-request log list returned
// to the extension.
type RequestLog struct {
	Status  RequestStatus `json:"status"`
	Message string        `json:"message"`
}

// SubmissionResult reports what a pipeline run uploaded.
type SubmissionResult struct {
	Created       int          `json:"created"`
	SkippedCached int          `json:"skippedCached"`
	Logs          []RequestLog `json:"logs"`
	TravelData    TravelData   `json:"travelData"`
}

func (r *SubmissionResult) addLog(status RequestStatus, message string) {
	r.Logs = append(r.Logs, RequestLog{Status: status, Message: message})
}

// TravelController runs the whole pipeline: query tickets, extrapolate trips,
// resolve distances to a fixed point, filter already-submitted trips,
// partition by month, upload, mark submitted. Each phase completes before the
// next begins.
type TravelController struct {
	psaClient          PSAClient
	distanceRepo       repositories.DistanceRepository
	accountRepo        repositories.AccountRepository
	submissionRepo     repositories.SubmissionRepository
	extrapolator       *Extrapolator
	resolver           *Resolver
	transactionService *services.TransactionService
	wsManager          WSManager
	config             config.Config
	log                logger.Logger

	now func() time.Time

	mu          sync.Mutex
	resourceIDs map[string]int
	authTokens  map[string][]byte
}

func New(
	psaClient PSAClient,
	distanceRepo repositories.DistanceRepository,
	accountRepo repositories.AccountRepository,
	submissionRepo repositories.SubmissionRepository,
	matcher *services.MatchService,
	matrixClient MatrixClient,
	transactionService *services.TransactionService,
	wsManager WSManager,
	config config.Config,
) *TravelController {
	return &TravelController{
		psaClient:          psaClient,
		distanceRepo:       distanceRepo,
		accountRepo:        accountRepo,
		submissionRepo:     submissionRepo,
		extrapolator:       NewExtrapolator(accountRepo),
		resolver:           NewResolver(distanceRepo, accountRepo, matcher, matrixClient),
		transactionService: transactionService,
		wsManager:          wsManager,
		config:             config,
		log:                logger.New("TravelController"),
		now:                time.Now,
		resourceIDs:        make(map[string]int),
		authTokens:         make(map[string][]byte),
	}
}

// Authenticate resolves the caller's resource ID and verifies they really see
// the PSA data they claim to. A verified token is cached hashed, so repeat
// requests skip the verification queries.
func (c *TravelController) Authenticate(
	ctx context.Context,
	req *TravelRequest,
	result *SubmissionResult,
) (int, error) {
	log := c.log.Function("Authenticate")

	c.mu.Lock()
	resourceID, haveResource := c.resourceIDs[req.Email]
	cachedHash, haveToken := c.authTokens[req.Email]
	c.mu.Unlock()

	if !haveResource {
		var err error
		resourceID, err = c.psaClient.QueryResourceByEmail(ctx, req.Email)
		if err != nil {
			result.addLog(StatusError, "No resources found that match the email: "+req.Email)
			return 0, err
		}

		c.mu.Lock()
		c.resourceIDs[req.Email] = resourceID
		c.mu.Unlock()
	}

	if haveToken && bcrypt.CompareHashAndPassword(cachedHash, []byte(req.AuthToken)) == nil {
		return resourceID, nil
	}

	switch {
	case len(req.RecentExpenseReports) > 0:
		count, err := c.psaClient.CountMatchingExpenseReports(ctx, resourceID, req.RecentExpenseReports)
		if err != nil {
			return 0, err
		}
		if count != len(req.RecentExpenseReports) {
			result.addLog(StatusError, "It seems like you are trying to impersonate someone! This request has been logged.")
			return 0, log.Error("expense report verification failed", "email", req.Email)
		}
	case len(req.RecentTickets) > 0:
		count, err := c.psaClient.CountMatchingTickets(ctx, req.RecentTickets)
		if err != nil {
			return 0, err
		}
		if count != len(req.RecentTickets) {
			result.addLog(StatusError, "It seems like you are trying to impersonate someone! This request has been logged.")
			return 0, log.Error("ticket verification failed", "email", req.Email)
		}
	default:
		result.addLog(StatusError, "No relevant travel data given to server")
		return 0, log.Error("no verification data in request", "email", req.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AuthToken), bcrypt.DefaultCost)
	if err != nil {
		return 0, log.Err("failed to hash auth token", err)
	}

	c.mu.Lock()
	c.authTokens[req.Email] = hash
	c.mu.Unlock()

	return resourceID, nil
}

// SubmitExpenseReports runs the pipeline over the past month and uploads
// mileage expense items, one expense report per calendar month.
func (c *TravelController) SubmitExpenseReports(
	ctx context.Context,
	req *TravelRequest,
) (*SubmissionResult, error) {
	log := c.log.Function("SubmitExpenseReports")
	result := &SubmissionResult{}

	resourceID, err := c.Authenticate(ctx, req, result)
	if err != nil {
		return result, err
	}

	c.submissionRepo.LockResource(resourceID)
	defer c.submissionRepo.UnlockResource(resourceID)

	travelData, err := c.buildTravelData(ctx, req, resourceID, startOfMonthWeek(c.now()), result)
	if err != nil {
		return result, err
	}
	result.TravelData = travelData

	c.progress(req.RequestID, "upload", "Uploading expense items")

	for _, partition := range PartitionByMonth(travelData) {
		if err := c.uploadExpensePartition(ctx, req, resourceID, partition, result); err != nil {
			return result, err
		}
	}

	if result.Created == 0 && result.SkippedCached > 0 {
		result.addLog(StatusWarning, fmt.Sprintf(
			"Skipped %d previously generated expense items. You can change this behavior in the extension's settings",
			result.SkippedCached,
		))
	}

	log.Info("expense submission complete",
		"resourceID", resourceID,
		"created", result.Created,
		"skipped", result.SkippedCached,
	)

	return result, nil
}

func (c *TravelController) uploadExpensePartition(
	ctx context.Context,
	req *TravelRequest,
	resourceID int,
	partition MonthPartition,
	result *SubmissionResult,
) error {
	log := c.log.Function("uploadExpensePartition")

	trips := partition.Days.Trips()
	if len(trips) == 0 {
		return nil
	}

	reportKey := expenseMonthKey(trips[0], partition.Key)
	reportName := fmt.Sprintf("%s for %s", c.config.ExpenseTitle, reportKey)

	reportID, found, err := c.psaClient.FindExpenseReport(ctx, reportName, resourceID)
	if err != nil {
		return err
	}
	if !found {
		result.addLog(StatusWarning, "No expense report found for this month (creating a new one)")
		reportID, err = c.psaClient.CreateExpenseReport(ctx, reportName, resourceID, endOfMonth(reportKey))
		if err != nil {
			result.addLog(StatusError, "Failed to create new expense report")
			return err
		}
		result.addLog(StatusSuccess, "Successfully created expense report")
	}

	var items []psa.ExpenseItem
	var fingerprints []string

	for _, trip := range trips {
		associated := trip.AssociatedAccountID()
		if associated == nil || trip.EntryDate() == nil || trip.DistanceMiles == nil {
			continue
		}

		fingerprint := repositories.Fingerprint(trip)
		if !req.IgnoreCache {
			submitted, err := c.submissionRepo.HasBeenSubmitted(ctx, SubmissionKindExpenseItem, fingerprint)
			if err != nil {
				return err
			}
			if submitted {
				result.SkippedCached++
				continue
			}
		}

		receiptAmount := float64(*trip.DistanceMiles) * c.config.DollarsPerMile
		items = append(items, psa.ExpenseItem{
			AccountID:       *associated,
			ExpenseReportID: reportID,
			ReceiptAmount:   math.Round(receiptAmount*100) / 100,
			Description:     fmt.Sprintf("%s %s to %s", c.config.TravelDescription, trip.FromName, trip.ToName),
			Origin:          trip.FromName,
			Destination:     trip.ToName,
			ExpenseDate:     *trip.EntryDate(),
			Miles:           *trip.DistanceMiles,
		})
		fingerprints = append(fingerprints, fingerprint)
	}

	if len(items) == 0 {
		return nil
	}

	created, err := c.psaClient.CreateExpenseItems(ctx, items)
	if err != nil {
		result.addLog(StatusError, "Failed to create new expense items")
		return err
	}

	if err := c.markSubmitted(ctx, SubmissionKindExpenseItem, fingerprints, resourceID); err != nil {
		return err
	}

	result.Created += created
	result.addLog(StatusSuccess, fmt.Sprintf("Created %d expense items", created))
	log.Info("uploaded expense items", "report", reportName, "count", created)

	return nil
}

// SubmitTravelTimes runs the pipeline over the past week and uploads travel
// time entries against each account's annual project travel task.
func (c *TravelController) SubmitTravelTimes(
	ctx context.Context,
	req *TravelRequest,
) (*SubmissionResult, error) {
	log := c.log.Function("SubmitTravelTimes")
	result := &SubmissionResult{}

	resourceID, err := c.Authenticate(ctx, req, result)
	if err != nil {
		return result, err
	}

	c.submissionRepo.LockResource(resourceID)
	defer c.submissionRepo.UnlockResource(resourceID)

	roleID, err := c.fieldRoleID(ctx, resourceID, result)
	if err != nil {
		return result, err
	}

	travelData, err := c.buildTravelData(ctx, req, resourceID, lastMonday(c.now()), result)
	if err != nil {
		return result, err
	}
	result.TravelData = travelData

	projects, tasks, err := c.travelTaskIndex(ctx, result)
	if err != nil {
		return result, err
	}

	c.progress(req.RequestID, "upload", "Uploading travel time entries")

	var entries []psa.TravelTimeEntry
	var fingerprints []string

	for _, trip := range travelData.Trips() {
		if !c.config.LogFirstTravelEntryOfDay && trip.FromAccountID == nil {
			continue
		}
		if !c.config.LogLastTravelEntryOfDay && trip.ToAccountID == nil {
			continue
		}

		if trip.TotalTimeHours == 0 {
			result.addLog(StatusWarning, fmt.Sprintf(
				"Skipping time entry for the trip from %s to %s: travel time has been calculated as 0 minutes",
				trip.FromName, trip.ToName,
			))
			continue
		}

		if trip.LeaveTime == nil || trip.ArriveTime == nil || trip.EntryDate() == nil {
			continue
		}

		taskID, ok := travelTaskForTrip(trip, projects, tasks)
		if !ok {
			result.addLog(StatusWarning, fmt.Sprintf(
				"Unable to find the travel task for the annual project associated with %s and %s",
				trip.FromName, trip.ToName,
			))
			continue
		}

		fingerprint := repositories.Fingerprint(trip)
		if !req.IgnoreCache {
			submitted, err := c.submissionRepo.HasBeenSubmitted(ctx, SubmissionKindTimeEntry, fingerprint)
			if err != nil {
				return result, err
			}
			if submitted {
				result.SkippedCached++
				continue
			}
		}

		entries = append(entries, psa.TravelTimeEntry{
			DateWorked:    *trip.EntryDate(),
			StartDateTime: *trip.LeaveTime,
			EndDateTime:   *trip.ArriveTime,
			ResourceID:    resourceID,
			RoleID:        roleID,
			TaskID:        taskID,
			SummaryNotes:  fmt.Sprintf("%s %s to %s", c.config.TravelDescription, trip.FromName, trip.ToName),
		})
		fingerprints = append(fingerprints, fingerprint)
	}

	if len(entries) == 0 {
		if result.SkippedCached > 0 {
			result.addLog(StatusWarning, fmt.Sprintf(
				"Skipped %d previously generated time entries. You can change this behavior in the extension's settings",
				result.SkippedCached,
			))
			return result, nil
		}
		result.addLog(StatusError, "No travel time entries to create")
		return result, log.Error("no travel time entries to create", "resourceID", resourceID)
	}

	created, err := c.psaClient.CreateTimeEntries(ctx, entries)
	if err != nil {
		result.addLog(StatusError, "No travel time entries created")
		return result, err
	}

	if err := c.markSubmitted(ctx, SubmissionKindTimeEntry, fingerprints, resourceID); err != nil {
		return result, err
	}

	result.Created = created
	result.addLog(StatusSuccess, fmt.Sprintf("Created %d travel time entries", created))
	log.Info("travel time submission complete", "resourceID", resourceID, "created", created)

	return result, nil
}

// buildTravelData runs the extrapolation and distance-resolution phases.
func (c *TravelController) buildTravelData(
	ctx context.Context,
	req *TravelRequest,
	resourceID int,
	since time.Time,
	result *SubmissionResult,
) (TravelData, error) {
	log := c.log.Function("buildTravelData")

	c.progress(req.RequestID, "tickets", "Querying recent time entries")

	entries, err := c.psaClient.QueryTimeEntries(ctx, resourceID, since)
	if err != nil {
		result.addLog(StatusError, "No tickets were found for you")
		return nil, err
	}

	// Travel entries are the pipeline's own output; feeding them back in
	// would produce trips between trips.
	filtered := entries[:0]
	for _, entry := range entries {
		if entry.EntryType != psa.EntryTypeTravel {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == 0 {
		result.addLog(StatusError, "No recent tickets have been found for you!")
		return nil, log.Error("no time entries in period", "resourceID", resourceID, "since", since)
	}

	SortTimeEntries(filtered)

	c.progress(req.RequestID, "accounts", "Resolving contracts and accounts")

	if err := c.loadAccounts(ctx, filtered, result); err != nil {
		return nil, err
	}

	c.progress(req.RequestID, "extrapolate", "Extrapolating travel data")

	travelData, err := c.extrapolator.Extrapolate(ctx, filtered, req.HomeAddress, resourceID)
	if err != nil {
		result.addLog(StatusError, "No recent tickets have been found for you!")
		return nil, err
	}

	c.progress(req.RequestID, "distances", "Resolving driving distances")

	if err := c.resolver.Resolve(ctx, travelData); err != nil {
		result.addLog(StatusError, "Google maps was unable to find an address for a school")
		return nil, err
	}

	return travelData, nil
}

// loadAccounts fills the contract and account caches for everything this
// batch references.
func (c *TravelController) loadAccounts(
	ctx context.Context,
	entries []TimeEntry,
	result *SubmissionResult,
) error {
	var missingContracts []int
	seenContracts := make(map[int]bool)
	for _, entry := range entries {
		if seenContracts[entry.ContractID] {
			continue
		}
		seenContracts[entry.ContractID] = true
		if _, ok := c.accountRepo.ContractAccountID(ctx, entry.ContractID); !ok {
			missingContracts = append(missingContracts, entry.ContractID)
		}
	}

	if len(missingContracts) > 0 {
		mapping, err := c.psaClient.QueryContractsByID(ctx, missingContracts)
		if err != nil {
			result.addLog(StatusError, "No accounts returned from the list of contracts")
			return err
		}
		for contractID, accountID := range mapping {
			c.accountRepo.SetContractAccountID(ctx, contractID, accountID)
		}
	}

	var missingAccounts []int
	seenAccounts := make(map[int]bool)
	for contractID := range seenContracts {
		accountID, ok := c.accountRepo.ContractAccountID(ctx, contractID)
		if !ok || seenAccounts[accountID] {
			continue
		}
		seenAccounts[accountID] = true
		if _, ok := c.accountRepo.Account(ctx, accountID); !ok {
			missingAccounts = append(missingAccounts, accountID)
		}
	}

	if len(missingAccounts) > 0 {
		accounts, err := c.psaClient.QueryAccountsByID(ctx, missingAccounts)
		if err != nil {
			result.addLog(StatusError, "No accounts found for the requested IDs")
			return err
		}
		for _, account := range accounts {
			c.accountRepo.SetAccount(ctx, account)
		}
	}

	return nil
}

// fieldRoleID finds the caller's field-technician role; only field techs log
// travel time.
func (c *TravelController) fieldRoleID(
	ctx context.Context,
	resourceID int,
	result *SubmissionResult,
) (int, error) {
	log := c.log.Function("fieldRoleID")

	roleIDs, err := c.psaClient.QueryResourceRoleIDs(ctx, resourceID)
	if err != nil || len(roleIDs) == 0 {
		result.addLog(StatusError, "Unable to find a role associated with your account")
		if err == nil {
			err = log.Error("no roles for resource", "resourceID", resourceID)
		}
		return 0, err
	}

	roles, err := c.psaClient.QueryRolesByID(ctx, roleIDs)
	if err != nil {
		return 0, err
	}

	for _, role := range roles {
		if strings.Contains(role.Name, "Field") {
			return role.ID, nil
		}
	}

	result.addLog(StatusError, "You are not a field technician!")
	return 0, log.Error("resource has no field role", "resourceID", resourceID)
}

// travelTaskIndex loads this school year's annual projects and their travel
// tasks.
func (c *TravelController) travelTaskIndex(
	ctx context.Context,
	result *SubmissionResult,
) (map[int]int, map[int]int, error) {
	yearLabel, createdAfter := annualProjectWindow(c.now())

	projects, err := c.psaClient.QueryAnnualProjects(ctx, yearLabel, createdAfter)
	if err != nil {
		result.addLog(StatusError, "No annual projects were found to be associated with any accounts")
		return nil, nil, err
	}

	accountToProject := make(map[int]int, len(projects))
	projectIDs := make([]int, 0, len(projects))
	for _, project := range projects {
		accountToProject[project.AccountID] = project.ID
		projectIDs = append(projectIDs, project.ID)
	}

	tasks, err := c.psaClient.QueryTravelTasks(ctx, projectIDs)
	if err != nil {
		result.addLog(StatusError, "No travel tasks found for the annual projects")
		return nil, nil, err
	}

	return accountToProject, tasks, nil
}

// travelTaskForTrip resolves the trip's billable task, preferring the
// destination account and falling back to the origin. Some accounts have no
// annual project (the main office), hence the fallback.
func travelTaskForTrip(trip *Trip, accountToProject, tasks map[int]int) (int, bool) {
	for _, accountID := range []*int{trip.ToAccountID, trip.FromAccountID} {
		if accountID == nil {
			continue
		}
		projectID, ok := accountToProject[*accountID]
		if !ok {
			continue
		}
		if taskID, ok := tasks[projectID]; ok {
			return taskID, true
		}
	}
	return 0, false
}

// markSubmitted records every uploaded fingerprint in one transaction.
func (c *TravelController) markSubmitted(
	ctx context.Context,
	kind SubmissionKind,
	fingerprints []string,
	resourceID int,
) error {
	mark := func(ctx context.Context) error {
		for _, fingerprint := range fingerprints {
			if err := c.submissionRepo.MarkSubmitted(ctx, kind, fingerprint, resourceID); err != nil {
				return err
			}
		}
		return nil
	}

	if c.transactionService == nil {
		return mark(ctx)
	}

	return c.transactionService.WithTransaction(ctx, mark)
}

func (c *TravelController) progress(requestID, phase, message string) {
	if c.wsManager == nil || requestID == "" {
		return
	}
	c.wsManager.SendTravelProgress(requestID, map[string]any{
		"phase":   phase,
		"message": message,
	})
}

// lastMonday is the travel-time window start: the most recent Monday at 1 AM.
func lastMonday(now time.Time) time.Time {
	day := now.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	return time.Date(day.Year(), day.Month(), day.Day(), 1, 0, 0, 0, now.Location())
}

// startOfMonthWeek is the expense window start: the Monday on or before the
// first of the current month, at 1 AM.
func startOfMonthWeek(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), 1, 1, 0, 0, 0, now.Location())
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// expenseMonthKey picks the month an expense report is named for: the month
// the first trip's week ends in. A week straddling the month boundary bills
// to the newer month.
func expenseMonthKey(firstTrip *Trip, fallback MonthKey) MonthKey {
	entryDate := firstTrip.EntryDate()
	if entryDate == nil {
		return fallback
	}
	endOfWeek := entryDate.AddDate(0, 0, 6-int(entryDate.Weekday()))
	return MonthKey{Year: endOfWeek.Year(), Month: endOfWeek.Month()}
}

// endOfMonth is the expense report's period-ending timestamp.
func endOfMonth(key MonthKey) time.Time {
	firstOfNext := time.Date(key.Year, key.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.Add(-time.Second)
}

// annualProjectWindow names the school year's annual projects. From August
// on, the running projects end in the next calendar year; before August they
// were created the previous year.
func annualProjectWindow(now time.Time) (string, time.Time) {
	year := now.Year()
	searchYear := year
	if now.Month() >= time.August {
		year++
	} else {
		searchYear--
	}
	return fmt.Sprintf("%d Annual Project", year),
		time.Date(searchYear, time.January, 1, 1, 0, 0, 0, now.Location())
}
