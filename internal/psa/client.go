package psa

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"relay/config"
	"relay/internal/logger"
	. "relay/internal/models"
	"time"
)

// Client talks to the PSA's REST surface. Every method is a thin wrapper over
// the generic query/create endpoints; the algorithmic work all happens in the
// travel controller.
type Client struct {
	baseURL    string
	username   string
	secret     string
	tracking   string
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(config config.Config) *Client {
	return &Client{
		baseURL:  config.PSABaseURL,
		username: config.PSAUsername,
		secret:   config.PSASecret,
		tracking: config.PSATrackingIdentifier,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: logger.New("psaClient"),
	}
}

type filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type queryRequest struct {
	Filters []filter `json:"filter"`
}

type queryResponse struct {
	Items json.RawMessage `json:"items"`
}

type createResponse struct {
	ItemIDs []int  `json:"itemIds"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	log := c.log.Function("do")

	payload, err := json.Marshal(body)
	if err != nil {
		return log.Err("failed to marshal request body", err, "path", path)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		method,
		c.baseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return log.Err("failed to build request", err, "path", path)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("UserName", c.username)
	req.Header.Set("Secret", c.secret)
	req.Header.Set("ApiIntegrationCode", c.tracking)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return log.Err("request failed", err, "path", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return log.Error("unexpected response status", "path", path, "status", resp.StatusCode)
	}

	if dest == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return log.Err("failed to decode response", err, "path", path)
	}

	return nil
}

func (c *Client) query(ctx context.Context, entity string, filters []filter, items any) error {
	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/"+entity+"/query", queryRequest{Filters: filters}, &resp); err != nil {
		return err
	}

	if len(resp.Items) == 0 {
		return nil
	}

	return json.Unmarshal(resp.Items, items)
}

func (c *Client) create(ctx context.Context, entity string, items any) (createResponse, error) {
	var resp createResponse
	err := c.do(ctx, http.MethodPost, "/"+entity, map[string]any{"items": items}, &resp)
	return resp, err
}

// QueryResourceByEmail resolves a technician's email to their resource ID.
func (c *Client) QueryResourceByEmail(ctx context.Context, email string) (int, error) {
	log := c.log.Function("QueryResourceByEmail")

	var resources []struct {
		ID int `json:"id"`
	}
	if err := c.query(ctx, "Resources", []filter{
		{Field: "email", Op: "eq", Value: email},
	}, &resources); err != nil {
		return 0, err
	}

	if len(resources) == 0 {
		return 0, log.Error("no resources found that match the email", "email", email)
	}

	return resources[0].ID, nil
}

// QueryTimeEntries returns the technician's time entries started after since.
func (c *Client) QueryTimeEntries(
	ctx context.Context,
	resourceID int,
	since time.Time,
) ([]TimeEntry, error) {
	var entries []TimeEntry
	if err := c.query(ctx, "TimeEntries", []filter{
		{Field: "startDateTime", Op: "gt", Value: since.Format(time.RFC3339)},
		{Field: "resourceID", Op: "eq", Value: resourceID},
	}, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// QueryContractsByID maps contract IDs onto their account IDs.
func (c *Client) QueryContractsByID(ctx context.Context, contractIDs []int) (map[int]int, error) {
	var contracts []struct {
		ID        int `json:"id"`
		AccountID int `json:"accountID"`
	}
	if err := c.query(ctx, "Contracts", []filter{
		{Field: "id", Op: "in", Value: contractIDs},
	}, &contracts); err != nil {
		return nil, err
	}

	mapping := make(map[int]int, len(contracts))
	for _, contract := range contracts {
		mapping[contract.ID] = contract.AccountID
	}

	return mapping, nil
}

// QueryAccountsByID returns the name and address data for a set of accounts.
func (c *Client) QueryAccountsByID(ctx context.Context, accountIDs []int) ([]Account, error) {
	var accounts []Account
	if err := c.query(ctx, "Accounts", []filter{
		{Field: "id", Op: "in", Value: accountIDs},
	}, &accounts); err != nil {
		return nil, err
	}

	return accounts, nil
}

// QueryResourceRoleIDs returns the role IDs held by a resource.
func (c *Client) QueryResourceRoleIDs(ctx context.Context, resourceID int) ([]int, error) {
	var resourceRoles []struct {
		RoleID int `json:"roleID"`
	}
	if err := c.query(ctx, "ResourceRoles", []filter{
		{Field: "resourceID", Op: "eq", Value: resourceID},
	}, &resourceRoles); err != nil {
		return nil, err
	}

	roleIDs := make([]int, 0, len(resourceRoles))
	for _, role := range resourceRoles {
		roleIDs = append(roleIDs, role.RoleID)
	}

	return roleIDs, nil
}

// QueryRolesByID returns role records for a set of role IDs.
func (c *Client) QueryRolesByID(ctx context.Context, roleIDs []int) ([]Role, error) {
	var roles []Role
	if err := c.query(ctx, "Roles", []filter{
		{Field: "id", Op: "in", Value: roleIDs},
	}, &roles); err != nil {
		return nil, err
	}

	return roles, nil
}

// QueryAnnualProjects returns the annual projects whose names carry the given
// school-year label, created since the start of the search window.
func (c *Client) QueryAnnualProjects(
	ctx context.Context,
	yearLabel string,
	createdAfter time.Time,
) ([]Project, error) {
	var projects []Project
	if err := c.query(ctx, "Projects", []filter{
		{Field: "projectName", Op: "contains", Value: yearLabel},
		{Field: "createDateTime", Op: "gt", Value: createdAfter.Format(time.RFC3339)},
	}, &projects); err != nil {
		return nil, err
	}

	return projects, nil
}

// QueryTravelTasks maps annual project IDs onto their "Travel Time" task.
func (c *Client) QueryTravelTasks(ctx context.Context, projectIDs []int) (map[int]int, error) {
	var tasks []struct {
		ID        int `json:"id"`
		ProjectID int `json:"projectID"`
	}
	if err := c.query(ctx, "Tasks", []filter{
		{Field: "title", Op: "eq", Value: "Travel Time"},
	}, &tasks); err != nil {
		return nil, err
	}

	wanted := make(map[int]bool, len(projectIDs))
	for _, id := range projectIDs {
		wanted[id] = true
	}

	mapping := make(map[int]int)
	for _, task := range tasks {
		if wanted[task.ProjectID] {
			mapping[task.ProjectID] = task.ID
		}
	}

	return mapping, nil
}

// FindExpenseReport looks up an expense report by name for a submitter.
// Returns found=false when no report with that name exists yet.
func (c *Client) FindExpenseReport(
	ctx context.Context,
	name string,
	submitterID int,
) (int, bool, error) {
	var reports []struct {
		ID int `json:"id"`
	}
	if err := c.query(ctx, "ExpenseReports", []filter{
		{Field: "name", Op: "eq", Value: name},
		{Field: "submitterID", Op: "eq", Value: submitterID},
	}, &reports); err != nil {
		return 0, false, err
	}

	if len(reports) == 0 {
		return 0, false, nil
	}

	return reports[0].ID, true, nil
}

// CreateExpenseReport creates a month-spanning expense report and returns its
// ID.
func (c *Client) CreateExpenseReport(
	ctx context.Context,
	name string,
	submitterID int,
	weekEnding time.Time,
) (int, error) {
	log := c.log.Function("CreateExpenseReport")

	resp, err := c.create(ctx, "ExpenseReports", []map[string]any{{
		"name":        name,
		"submitterID": submitterID,
		"weekEnding":  weekEnding.Format(time.RFC3339),
	}})
	if err != nil {
		return 0, err
	}

	if len(resp.ItemIDs) == 0 {
		return 0, log.Error("failed to create new expense report", "name", name, "message", resp.Message)
	}

	return resp.ItemIDs[0], nil
}

// CreateExpenseItems uploads mileage expense items and returns how many were
// created.
func (c *Client) CreateExpenseItems(ctx context.Context, items []ExpenseItem) (int, error) {
	log := c.log.Function("CreateExpenseItems")

	for i := range items {
		items[i].ExpenseCategory = expenseCategoryMileage
		items[i].PaymentType = paymentTypeOther
		items[i].Billable = true
		items[i].HaveReceipt = true
	}

	resp, err := c.create(ctx, "ExpenseItems", items)
	if err != nil {
		return 0, err
	}

	if len(resp.ItemIDs) == 0 {
		return 0, log.Error("failed to create new expense items", "message", resp.Message)
	}

	return len(resp.ItemIDs), nil
}

// CreateTimeEntries uploads travel time entries and returns how many were
// created.
func (c *Client) CreateTimeEntries(ctx context.Context, entries []TravelTimeEntry) (int, error) {
	log := c.log.Function("CreateTimeEntries")

	for i := range entries {
		entries[i].EntryType = entryTypeTravelTime
	}

	resp, err := c.create(ctx, "TimeEntries", entries)
	if err != nil {
		return 0, err
	}

	if len(resp.ItemIDs) == 0 {
		return 0, log.Error("no travel time entries created", "message", resp.Message)
	}

	return len(resp.ItemIDs), nil
}

// CountMatchingExpenseReports verifies caller-supplied expense report
// triplets against the PSA; the count must equal the number of checks for the
// caller to be trusted.
func (c *Client) CountMatchingExpenseReports(
	ctx context.Context,
	submitterID int,
	checks []ExpenseReportCheck,
) (int, error) {
	names := make([]string, 0, len(checks))
	for _, check := range checks {
		names = append(names, check.Name)
	}

	var reports []struct {
		ID int `json:"id"`
	}
	if err := c.query(ctx, "ExpenseReports", []filter{
		{Field: "name", Op: "in", Value: names},
		{Field: "submitterID", Op: "eq", Value: submitterID},
	}, &reports); err != nil {
		return 0, err
	}

	return len(reports), nil
}

// CountMatchingTickets verifies caller-supplied recent ticket numbers.
func (c *Client) CountMatchingTickets(
	ctx context.Context,
	checks []TicketCheck,
) (int, error) {
	numbers := make([]string, 0, len(checks))
	for _, check := range checks {
		numbers = append(numbers, check.TicketNumber)
	}

	var tickets []struct {
		ID int `json:"id"`
	}
	if err := c.query(ctx, "Tickets", []filter{
		{Field: "ticketNumber", Op: "in", Value: numbers},
	}, &tickets); err != nil {
		return 0, err
	}

	return len(tickets), nil
}
