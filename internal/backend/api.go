package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// IngestedLimit is one limit assigned to a user.
type IngestedLimit struct {
	UserBBID        string  `json:"userBBID" validate:"required"`
	LegalEntityBBID string  `json:"legalEntityBBID,omitempty"`
	FunctionName    string  `json:"functionName" validate:"required"`
	Currency        string  `json:"currency" validate:"required,len=3"`
	Amount          float64 `json:"amount" validate:"gt=0"`
	Periodicity     string  `json:"periodicity,omitempty" validate:"omitempty,oneof=DAILY WEEKLY MONTHLY QUARTERLY YEARLY TRANSACTION"`
}

// IngestionStats counts what the backend did with ingested limits.
type IngestionStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// LimitIngestionReport is returned by PutLimits. Per-limit problems are
// reported in Errors with a 2xx status.
type LimitIngestionReport struct {
	IngestionStats IngestionStats `json:"ingestionStats"`
	Errors         []string       `json:"errors,omitempty"`
}

// Amount is a monetary amount in a currency.
type Amount struct {
	Amount       string `json:"amount" validate:"required,numeric"`
	CurrencyCode string `json:"currencyCode" validate:"required,len=3"`
}

// Transaction is one booked transaction on an arrangement.
type Transaction struct {
	ExternalID           string `json:"externalId" validate:"required"`
	ArrangementID        string `json:"arrangementId" validate:"required"`
	Reference            string `json:"reference,omitempty"`
	Description          string `json:"description,omitempty"`
	Type                 string `json:"type,omitempty"`
	BookingDate          string `json:"bookingDate" validate:"required,datetime=2006-01-02"`
	Amount               Amount `json:"transactionAmountCurrency"`
	CreditDebitIndicator string `json:"creditDebitIndicator" validate:"required,oneof=CRDT DBIT"`
}

// TransactionID is the id minted for an ingested transaction.
type TransactionID struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId,omitempty"`
}

// TransactionItem is a stored transaction as returned by queries.
type TransactionItem struct {
	Transaction
	ID            string `json:"id"`
	Category      string `json:"category,omitempty"`
	BillingStatus string `json:"billingStatus,omitempty"`
}

// TransactionsPage is one page of a transaction query.
type TransactionsPage struct {
	TransactionItems []TransactionItem `json:"transactionItems"`
	TotalElements    int               `json:"totalElements"`
}

// TransactionsQuery filters GetTransactions. Zero fields are not sent.
type TransactionsQuery struct {
	ArrangementID          string
	ArrangementIDs         []string
	BookingDateGreaterThan string
	BookingDateLessThan    string
	AmountGreaterThan      string
	AmountLessThan         string
	CreditDebitIndicator   string
	Description            string
	Reference              string
	Types                  []string
	Currency               string
	Category               string
	BillingStatus          string
	From                   int
	Cursor                 string
	Size                   int
	OrderBy                string
	Direction              string
}

// Values encodes q as query parameters.
func (q TransactionsQuery) Values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("arrangementId", q.ArrangementID)
	for _, id := range q.ArrangementIDs {
		v.Add("arrangementsIds", id)
	}
	set("bookingDateGreaterThan", q.BookingDateGreaterThan)
	set("bookingDateLessThan", q.BookingDateLessThan)
	set("amountGreaterThan", q.AmountGreaterThan)
	set("amountLessThan", q.AmountLessThan)
	set("creditDebitIndicator", q.CreditDebitIndicator)
	set("description", q.Description)
	set("reference", q.Reference)
	for _, t := range q.Types {
		v.Add("types", t)
	}
	set("currency", q.Currency)
	set("category", q.Category)
	set("billingStatus", q.BillingStatus)
	if q.From > 0 {
		v.Set("from", strconv.Itoa(q.From))
	}
	set("cursor", q.Cursor)
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	set("orderBy", q.OrderBy)
	set("direction", q.Direction)
	return v
}

// TransactionDelete identifies a transaction to remove.
type TransactionDelete struct {
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"externalId,omitempty" validate:"required_without=ID"`
}

// TransactionPatch updates the category or billing status of a transaction.
type TransactionPatch struct {
	ID            string `json:"id" validate:"required"`
	Category      string `json:"category,omitempty"`
	BillingStatus string `json:"billingStatus,omitempty"`
}

// ArrangementItem names an arrangement whose transactions should be
// refreshed from the core system.
type ArrangementItem struct {
	ArrangementID string `json:"arrangementId" validate:"required"`
}

// LegalEntity is an organisation customers and users belong to.
type LegalEntity struct {
	ExternalID       string `json:"externalId" validate:"required"`
	Name             string `json:"name" validate:"required"`
	ParentExternalID string `json:"parentExternalId,omitempty"`
	Type             string `json:"legalEntityType" validate:"required,oneof=CUSTOMER BANK"`
}

// User is a user of a legal entity.
type User struct {
	ExternalID string `json:"externalId" validate:"required"`
	FullName   string `json:"fullName" validate:"required"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
}

// UserID maps a user's external id to the minted id.
type UserID struct {
	ExternalID string `json:"externalId"`
	ID         string `json:"id"`
}

// ProductGroup groups products a legal entity's users are entitled to.
type ProductGroup struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	ProductIDs  []string `json:"productIds,omitempty"`
}

// Arrangement is a product arrangement (an account, card or loan) held by
// one or more legal entities.
type Arrangement struct {
	ExternalID     string   `json:"externalArrangementId" validate:"required"`
	ProductID      string   `json:"externalProductId" validate:"required"`
	LegalEntityIDs []string `json:"externalLegalEntityIds" validate:"min=1,dive,required"`
	Name           string   `json:"name,omitempty"`
	Currency       string   `json:"currency" validate:"required,len=3"`
	IBAN           string   `json:"IBAN,omitempty"`
	BookedBalance  string   `json:"bookedBalance,omitempty" validate:"omitempty,numeric"`
}

// ArrangementBatchItem is the per-arrangement result of a batch upsert.
type ArrangementBatchItem struct {
	ArrangementID string `json:"arrangementId"`
	ResourceID    string `json:"resourceId"`
	Action        string `json:"action"`
	Status        string `json:"status"`
}

// Succeeded reports whether the backend accepted the arrangement.
func (i ArrangementBatchItem) Succeeded() bool {
	return i.Status == "200"
}

type createdID struct {
	ID string `json:"id"`
}

// PutLimits ingests limits.
func (c *Client) PutLimits(ctx context.Context, limits []IngestedLimit) (*LimitIngestionReport, error) {
	var report LimitIngestionReport
	if err := c.do(ctx, http.MethodPut, "/limits/ingest", limits, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// PostTransactions ingests transactions and returns their ids.
func (c *Client) PostTransactions(ctx context.Context, transactions []Transaction) ([]TransactionID, error) {
	var ids []TransactionID
	if err := c.do(ctx, http.MethodPost, "/transactions", transactions, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetTransactions returns one page of transactions matching q.
func (c *Client) GetTransactions(ctx context.Context, q TransactionsQuery) (*TransactionsPage, error) {
	path := "/transactions"
	if v := q.Values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var page TransactionsPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DeleteTransactions removes transactions.
func (c *Client) DeleteTransactions(ctx context.Context, items []TransactionDelete) error {
	return c.do(ctx, http.MethodPost, "/transactions/delete", items, nil)
}

// PatchTransactions updates categories and billing statuses.
func (c *Client) PatchTransactions(ctx context.Context, items []TransactionPatch) error {
	return c.do(ctx, http.MethodPatch, "/transactions", items, nil)
}

// RefreshTransactions asks the backend to pull new transactions for the
// arrangements.
func (c *Client) RefreshTransactions(ctx context.Context, items []ArrangementItem) error {
	return c.do(ctx, http.MethodPost, "/transactions/refresh", items, nil)
}

// UpsertArrangements creates or updates arrangements in one batch.
func (c *Client) UpsertArrangements(ctx context.Context, arrangements []Arrangement) ([]ArrangementBatchItem, error) {
	var items []ArrangementBatchItem
	if err := c.do(ctx, http.MethodPost, "/arrangements/batch", arrangements, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteArrangement deletes the arrangement with the given external id.
func (c *Client) DeleteArrangement(ctx context.Context, externalID string) error {
	return c.do(ctx, http.MethodDelete, "/arrangements/"+url.PathEscape(externalID), nil, nil)
}

// CreateLegalEntity creates le and returns its id.
func (c *Client) CreateLegalEntity(ctx context.Context, le LegalEntity) (string, error) {
	var out createdID
	if err := c.do(ctx, http.MethodPost, "/legal-entities", le, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteLegalEntity deletes a legal entity.
func (c *Client) DeleteLegalEntity(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/legal-entities/"+url.PathEscape(id), nil, nil)
}

// CreateUsers creates users under a legal entity.
func (c *Client) CreateUsers(ctx context.Context, legalEntityID string, users []User) ([]UserID, error) {
	var ids []UserID
	path := "/legal-entities/" + url.PathEscape(legalEntityID) + "/users"
	if err := c.do(ctx, http.MethodPost, path, users, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteUser deletes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// CreateProductGroup creates a product group under a legal entity.
func (c *Client) CreateProductGroup(ctx context.Context, legalEntityID string, group ProductGroup) (string, error) {
	var out createdID
	path := "/legal-entities/" + url.PathEscape(legalEntityID) + "/product-groups"
	if err := c.do(ctx, http.MethodPost, path, group, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
