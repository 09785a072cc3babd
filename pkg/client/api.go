package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
)

// Login exchanges credentials for a token and starts the session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	req := models.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &out, PresetPublic); err != nil {
		return nil, err
	}
	if err := c.session.Start(out.Token, out.User); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the token server-side and clears the session. The local
// session is cleared even when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil, PresetJSON)
	if clearErr := c.session.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// Me fetches the signed-in user and refreshes the cached copy.
func (c *Client) Me(ctx context.Context) (*models.UserInfo, error) {
	var out models.UserInfo
	if err := c.get(ctx, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	if err := c.session.SetUser(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh swaps the current token for a new one.
func (c *Client) Refresh(ctx context.Context) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, nil, &out, PresetJSON); err != nil {
		return nil, err
	}
	user := out.User
	if user == nil {
		user, _ = c.session.User()
	}
	if err := c.session.Start(out.Token, user); err != nil {
		return nil, err
	}
	return &out, nil
}

// EnsureFresh refreshes the token when it expires within threshold.
func (c *Client) EnsureFresh(ctx context.Context, threshold time.Duration) error {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}
	if !c.session.Tokens().ShouldRefresh(threshold) {
		return nil
	}
	_, err := c.Refresh(ctx)
	return err
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	req := models.PasswordChangeRequest{CurrentPassword: current, NewPassword: next}
	return c.do(ctx, http.MethodPut, "/api/auth/password", nil, req, nil, PresetJSON)
}

// Register creates an account. Admin only.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	var out models.UserInfo
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListLeads returns one page of leads visible to the caller.
func (c *Client) ListLeads(ctx context.Context, q models.LeadListQuery) (*models.ListResponse[schema.Lead], error) {
	var out models.ListResponse[schema.Lead]
	if err := c.get(ctx, "/api/leads", Encode(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetLead(ctx context.Context, leadID uint) (*schema.Lead, error) {
	var out schema.Lead
	if err := c.get(ctx, "/api/leads/"+id(leadID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateLead(ctx context.Context, req models.LeadCreateRequest) (*schema.Lead, error) {
	var out schema.Lead
	if err := c.do(ctx, http.MethodPost, "/api/leads", nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLead(ctx context.Context, leadID uint, req models.LeadUpdateRequest) (*schema.Lead, error) {
	var out schema.Lead
	if err := c.do(ctx, http.MethodPut, "/api/leads/"+id(leadID), nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLead soft deletes a lead, or removes it with its history when hard is set.
func (c *Client) DeleteLead(ctx context.Context, leadID uint, hard bool) error {
	var q url.Values
	if hard {
		q = url.Values{"hard": {"true"}}
	}
	return c.do(ctx, http.MethodDelete, "/api/leads/"+id(leadID), q, nil, nil, PresetJSON)
}

func (c *Client) AddActivity(ctx context.Context, leadID uint, req models.ActivityRequest) (*schema.LeadActivity, error) {
	var out schema.LeadActivity
	if err := c.do(ctx, http.MethodPost, "/api/leads/"+id(leadID)+"/activity", nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Activities(ctx context.Context, leadID uint) ([]schema.LeadActivity, error) {
	var out models.DataResponse[schema.LeadActivity]
	if err := c.get(ctx, "/api/leads/"+id(leadID)+"/activity", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ChangeLeadStatus moves a lead to status and keeps reason on its history.
func (c *Client) ChangeLeadStatus(ctx context.Context, leadID uint, status, reason string) (*schema.Lead, error) {
	var out schema.Lead
	req := models.StatusChangeRequest{Status: status, Reason: reason}
	if err := c.do(ctx, http.MethodPut, "/api/leads/"+id(leadID)+"/status", nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StatusHistory(ctx context.Context, leadID uint) ([]schema.LeadActivity, error) {
	return c.trail(ctx, leadID, "history")
}

func (c *Client) AssignmentHistory(ctx context.Context, leadID uint) ([]schema.LeadActivity, error) {
	return c.trail(ctx, leadID, "assignments")
}

func (c *Client) trail(ctx context.Context, leadID uint, name string) ([]schema.LeadActivity, error) {
	var out models.DataResponse[schema.LeadActivity]
	if err := c.get(ctx, "/api/leads/"+id(leadID)+"/"+name, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) AddNote(ctx context.Context, leadID uint, content string) (*schema.LeadNote, error) {
	var out schema.LeadNote
	req := models.NoteRequest{Content: content}
	if err := c.do(ctx, http.MethodPost, "/api/leads/"+id(leadID)+"/notes", nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportLeads downloads the filtered leads as an XLSX workbook.
func (c *Client) ExportLeads(ctx context.Context, q models.LeadListQuery) ([]byte, error) {
	return c.download(ctx, "/api/leads/export", Encode(q))
}

func (c *Client) ListUsers(ctx context.Context, q models.UserListQuery) (*models.ListResponse[models.UserInfo], error) {
	var out models.ListResponse[models.UserInfo]
	if err := c.get(ctx, "/api/users", Encode(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Agents lists agents with their workload.
func (c *Client) Agents(ctx context.Context, activeOnly bool) ([]models.AgentSummary, error) {
	var q url.Values
	if activeOnly {
		q = url.Values{"active": {"true"}}
	}
	var out models.DataResponse[models.AgentSummary]
	if err := c.get(ctx, "/api/users/agents", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) GetUser(ctx context.Context, userID uint) (*models.UserInfo, error) {
	var out models.UserInfo
	if err := c.get(ctx, "/api/users/"+id(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, userID uint, req models.UserUpdateRequest) (*models.UserInfo, error) {
	var out models.UserInfo
	if err := c.do(ctx, http.MethodPut, "/api/users/"+id(userID), nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID uint) (*models.UserDeleteResponse, error) {
	var out models.UserDeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/api/users/"+id(userID), nil, nil, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProperties returns one page of listings. It works signed out.
func (c *Client) ListProperties(ctx context.Context, q models.PropertyListQuery) (*models.ListResponse[schema.Property], error) {
	var out models.ListResponse[schema.Property]
	if err := c.get(ctx, "/api/properties", Encode(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchProperties runs a free-text search over listings.
func (c *Client) SearchProperties(ctx context.Context, q models.PropertyListQuery) (*models.ListResponse[schema.Property], error) {
	var out models.ListResponse[schema.Property]
	if err := c.get(ctx, "/api/properties/search", Encode(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FeaturedProperties(ctx context.Context, limit int) ([]schema.Property, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out models.DataResponse[schema.Property]
	if err := c.get(ctx, "/api/properties/featured", q, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) GetProperty(ctx context.Context, propertyID uint) (*schema.Property, error) {
	var out schema.Property
	if err := c.get(ctx, "/api/properties/"+id(propertyID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProperty(ctx context.Context, req models.PropertyCreateRequest) (*schema.Property, error) {
	var out schema.Property
	if err := c.do(ctx, http.MethodPost, "/api/properties", nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProperty(ctx context.Context, propertyID uint, req models.PropertyUpdateRequest) (*schema.Property, error) {
	var out schema.Property
	if err := c.do(ctx, http.MethodPut, "/api/properties/"+id(propertyID), nil, req, &out, PresetJSON); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProperty deactivates a listing, or removes it when hard is set.
func (c *Client) DeleteProperty(ctx context.Context, propertyID uint, hard bool) error {
	var q url.Values
	if hard {
		q = url.Values{"hard": {"true"}}
	}
	return c.do(ctx, http.MethodDelete, "/api/properties/"+id(propertyID), q, nil, nil, PresetJSON)
}

func (c *Client) PropertyStats(ctx context.Context) (*models.PropertyStats, error) {
	var out models.PropertyStats
	if err := c.get(ctx, "/api/properties/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BulkUpdateProperties(ctx context.Context, req models.PropertyBulkUpdateRequest) (int64, error) {
	var out models.BulkUpdateResponse
	if err := c.do(ctx, http.MethodPost, "/api/properties/bulk-update", nil, req, &out, PresetJSON); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

// ImportProperties uploads a CSV or XLSX file of listings.
func (c *Client) ImportProperties(ctx context.Context, filename string, r io.Reader) (*models.ImportResponse, error) {
	var out models.ImportResponse
	if err := c.upload(ctx, "/api/properties/import", "file", filename, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadPropertyMedia attaches an image to a listing.
func (c *Client) UploadPropertyMedia(ctx context.Context, propertyID uint, filename string, r io.Reader) (*models.MediaResponse, error) {
	var out models.MediaResponse
	if err := c.upload(ctx, "/api/properties/"+id(propertyID)+"/media", "file", filename, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CRMStats(ctx context.Context) (*models.CRMStats, error) {
	var out models.CRMStats
	if err := c.get(ctx, "/api/stats/crm", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.get(ctx, "/api/stats/dashboard", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AgentStats(ctx context.Context) ([]models.AgentStats, error) {
	var out models.DataResponse[models.AgentStats]
	if err := c.get(ctx, "/api/stats/agents", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Notifications(ctx context.Context, q models.NotificationListQuery) (*models.NotificationListResponse, error) {
	var out models.NotificationListResponse
	if err := c.get(ctx, "/api/notifications", Encode(q), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationID uint) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+id(notificationID), nil, nil, nil, PresetJSON)
}

// MarkAllNotificationsRead returns how many notifications changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	var out models.CountResponse
	if err := c.do(ctx, http.MethodPut, "/api/notifications/read-all", nil, nil, &out, PresetJSON); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) DeleteNotification(ctx context.Context, notificationID uint) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+id(notificationID), nil, nil, nil, PresetJSON)
}

// SubmitContact posts the public contact form.
func (c *Client) SubmitContact(ctx context.Context, req models.ContactFormRequest) (*models.ContactResponse, error) {
	var out models.ContactResponse
	if err := c.do(ctx, http.MethodPost, "/api/public/contact", nil, req, &out, PresetPublic); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends one visitor message to the chatbot.
func (c *Client) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	var out models.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/public/chat", nil, req, &out, PresetPublic); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out, PresetPublic); err != nil {
		return nil, err
	}
	return &out, nil
}
