package platform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

// Reimbursement statuses.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Expense categories.
const (
	CategoryTravel         = "TRAVEL"
	CategoryMeals          = "MEALS"
	CategoryOfficeSupplies = "OFFICE_SUPPLIES"
	CategoryEquipment      = "EQUIPMENT"
	CategoryOther          = "OTHER"
)

// Categories lists the expense categories the backend accepts.
var Categories = []string{
	CategoryTravel,
	CategoryMeals,
	CategoryOfficeSupplies,
	CategoryEquipment,
	CategoryOther,
}

// Export formats.
const (
	ExportCSV   = "csv"
	ExportExcel = "excel"
)

// Reimbursement represents a reimbursement request
type Reimbursement struct {
	ID          string     `json:"id"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	ReceiptURL  string     `json:"receiptUrl"`
	Status      string     `json:"status"`
	Feedback    string     `json:"feedback,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	SubmittedBy *User      `json:"submittedBy,omitempty"`
	ApprovedBy  *User      `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
}

// NewReimbursement represents a request to create a reimbursement
type NewReimbursement struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	ReceiptURL  string  `json:"receiptUrl"`
}

// StatusUpdate is an admin decision on a reimbursement
type StatusUpdate struct {
	Status   string `json:"status"`
	Feedback string `json:"feedback,omitempty"`
}

// ReimbursementFilter narrows list and analytics queries. Zero fields are omitted.
type ReimbursementFilter struct {
	Status    string
	Category  string
	UserID    string
	GroupBy   string
	StartDate time.Time
	EndDate   time.Time
}

func (f ReimbursementFilter) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("status", f.Status)
	set("category", f.Category)
	set("userId", f.UserID)
	set("groupBy", f.GroupBy)
	if !f.StartDate.IsZero() {
		v.Set("startDate", f.StartDate.Format(time.RFC3339))
	}
	if !f.EndDate.IsZero() {
		v.Set("endDate", f.EndDate.Format(time.RFC3339))
	}
	return v
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadReceipt uploads a receipt file and returns its storage URL.
func (c *Client) UploadReceipt(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("receipt", filename)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeRequestFailed, "failed to build upload", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", errors.Wrap(errors.ErrCodeRequestFailed, fmt.Sprintf("failed to read receipt: %s", filename), err)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(errors.ErrCodeRequestFailed, "failed to build upload", err)
	}

	cl := (&call{
		method:      http.MethodPost,
		path:        "/uploads/receipt",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}).authed()

	var resp uploadResponse
	if err := c.do(ctx, cl, &resp); err != nil {
		return "", err
	}

	if resp.URL == "" {
		return "", errors.New(errors.ErrCodeDecodeFailed, "upload response did not include a URL")
	}

	return resp.URL, nil
}

// CreateReimbursement files a reimbursement for an already uploaded receipt.
func (c *Client) CreateReimbursement(ctx context.Context, req NewReimbursement) (*Reimbursement, error) {
	cl, err := newCall(http.MethodPost, "/reimbursements", req)
	if err != nil {
		return nil, err
	}

	var created Reimbursement
	if err := c.do(ctx, cl.authed(), &created); err != nil {
		return nil, err
	}

	return &created, nil
}

// SubmitReimbursement uploads the receipt and then files the reimbursement.
func (c *Client) SubmitReimbursement(ctx context.Context, req NewReimbursement, filename string, receipt io.Reader) (*Reimbursement, error) {
	receiptURL, err := c.UploadReceipt(ctx, filename, receipt)
	if err != nil {
		return nil, err
	}
	req.ReceiptURL = receiptURL
	return c.CreateReimbursement(ctx, req)
}

// ListMyReimbursements returns the caller's reimbursements.
func (c *Client) ListMyReimbursements(ctx context.Context, filter ReimbursementFilter) ([]Reimbursement, error) {
	return c.listReimbursements(ctx, "/reimbursements/me", filter)
}

// ListAllReimbursements returns every reimbursement (admin only).
func (c *Client) ListAllReimbursements(ctx context.Context, filter ReimbursementFilter) ([]Reimbursement, error) {
	return c.listReimbursements(ctx, "/reimbursements/all", filter)
}

func (c *Client) listReimbursements(ctx context.Context, path string, filter ReimbursementFilter) ([]Reimbursement, error) {
	cl, err := newCall(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	cl.query = filter.values()

	var list []Reimbursement
	if err := c.do(ctx, cl.authed(), &list); err != nil {
		return nil, err
	}

	return list, nil
}

// GetReimbursement returns a reimbursement by ID.
func (c *Client) GetReimbursement(ctx context.Context, id string) (*Reimbursement, error) {
	cl, err := newCall(http.MethodGet, "/reimbursements/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var r Reimbursement
	if err := c.do(ctx, cl.authed(), &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// UpdateReimbursementStatus approves or rejects a reimbursement (admin only).
func (c *Client) UpdateReimbursementStatus(ctx context.Context, id string, update StatusUpdate) (*Reimbursement, error) {
	cl, err := newCall(http.MethodPut, "/reimbursements/"+url.PathEscape(id)+"/status", update)
	if err != nil {
		return nil, err
	}

	var r Reimbursement
	if err := c.do(ctx, cl.authed(), &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// ReimbursementAnalytics returns aggregated expense analytics. The shape
// depends on filter.GroupBy, so it is returned undecoded into a map.
func (c *Client) ReimbursementAnalytics(ctx context.Context, filter ReimbursementFilter) (map[string]interface{}, error) {
	cl, err := newCall(http.MethodGet, "/reimbursements/analytics", nil)
	if err != nil {
		return nil, err
	}
	cl.query = filter.values()

	var out map[string]interface{}
	if err := c.do(ctx, cl.authed(), &out); err != nil {
		return nil, err
	}

	return out, nil
}

// ExportReimbursements writes a CSV or Excel export of the matching
// reimbursements to w. Nothing is written unless the backend accepts the call.
func (c *Client) ExportReimbursements(ctx context.Context, format string, filter ReimbursementFilter, w io.Writer) error {
	cl, err := newCall(http.MethodGet, "/reimbursements/export/"+url.PathEscape(format), nil)
	if err != nil {
		return err
	}
	cl.query = filter.values()
	cl.accept = "*/*"

	return c.do(ctx, cl.authed(), w)
}
