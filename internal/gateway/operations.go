package gateway

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"github.com/prohmpiriya/event-studio/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Login exchanges email and password for a credential and identity.
// A 401/403 is reported as InvalidCredentials.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	body, err := jsonBody(loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var result domain.AuthResult
	if _, err := c.do(ctx, call{
		op:           OpLogin,
		method:       http.MethodPost,
		path:         "/auth/login",
		body:         body,
		contentType:  "application/json",
		out:          &result,
		unauthorized: domain.KindInvalidCredentials,
	}); err != nil {
		return nil, err
	}
	return checkAuthResult(&result)
}

// Signup registers a new account and returns its credential and identity
func (c *Client) Signup(ctx context.Context, reg *domain.Registration) (*domain.AuthResult, error) {
	body, err := jsonBody(reg)
	if err != nil {
		return nil, err
	}

	var result domain.AuthResult
	if _, err := c.do(ctx, call{
		op:          OpSignup,
		method:      http.MethodPost,
		path:        "/auth/signup",
		body:        body,
		contentType: "application/json",
		out:         &result,
	}); err != nil {
		return nil, err
	}
	return checkAuthResult(&result)
}

func checkAuthResult(result *domain.AuthResult) (*domain.AuthResult, error) {
	if result.Credential.IsZero() || result.Identity == nil {
		return nil, domain.NewError(domain.KindService, "authentication response is missing the token or user")
	}
	return result, nil
}

// CurrentIdentity fetches the identity owning the attached credential.
// A 401/403 is reported as SessionExpired.
func (c *Client) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	var identity domain.Identity
	if _, err := c.do(ctx, call{
		op:           OpCurrentIdentity,
		method:       http.MethodGet,
		path:         "/auth/me",
		out:          &identity,
		unauthorized: domain.KindSessionExpired,
	}); err != nil {
		return nil, err
	}
	return &identity, nil
}

// UploadMedia uploads event media and returns its remote reference
func (c *Client) UploadMedia(ctx context.Context, item domain.MediaItem) (string, error) {
	return c.uploadImage(ctx, OpUploadMedia, "/upload", item)
}

// UploadProfileImage uploads a profile picture and returns its remote reference
func (c *Client) UploadProfileImage(ctx context.Context, item domain.MediaItem) (string, error) {
	return c.uploadImage(ctx, OpUploadProfileImage, "/users/upload-image", item)
}

func (c *Client) uploadImage(ctx context.Context, op, path string, item domain.MediaItem) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := item.Name
	if name == "" {
		name = "image"
	}
	mt := mimetype.Detect(item.Content)
	if filepath.Ext(name) == "" {
		name += mt.Extension()
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="`+escapeQuotes(name)+`"`)
	h.Set("Content-Type", mt.String())
	part, err := w.CreatePart(h)
	if err != nil {
		return "", domain.WrapError(domain.KindService, err, "build upload")
	}
	if _, err := part.Write(item.Content); err != nil {
		return "", domain.WrapError(domain.KindService, err, "build upload")
	}
	if err := w.Close(); err != nil {
		return "", domain.WrapError(domain.KindService, err, "build upload")
	}

	var out uploadResponse
	if _, err := c.do(ctx, call{
		op:          op,
		method:      http.MethodPost,
		path:        path,
		body:        &buf,
		contentType: w.FormDataContentType(),
		out:         &out,
	}); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", domain.NewError(domain.KindService, "upload response is missing the url")
	}
	return out.URL, nil
}

// CreateEvent submits an event and returns it with its server-assigned id
func (c *Client) CreateEvent(ctx context.Context, payload *domain.EventPayload) (*domain.Event, error) {
	body, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}

	var event domain.Event
	if _, err := c.do(ctx, call{
		op:          OpCreateEvent,
		method:      http.MethodPost,
		path:        "/events",
		body:        body,
		contentType: "application/json",
		out:         &event,
	}); err != nil {
		return nil, err
	}
	if event.ResourceID() == "" {
		return nil, domain.NewError(domain.KindService, "create event response is missing the id")
	}
	return &event, nil
}

// UpdateProfile saves profile fields and returns the server's identity
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.Identity, error) {
	body, err := jsonBody(update)
	if err != nil {
		return nil, err
	}

	var identity domain.Identity
	if _, err := c.do(ctx, call{
		op:          OpUpdateProfile,
		method:      http.MethodPut,
		path:        "/users/profile",
		body:        body,
		contentType: "application/json",
		out:         &identity,
	}); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ChangePassword replaces the account password
func (c *Client) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	body, err := jsonBody(change)
	if err != nil {
		return err
	}

	_, err = c.do(ctx, call{
		op:          OpChangePassword,
		method:      http.MethodPut,
		path:        "/users/change-password",
		body:        body,
		contentType: "application/json",
	})
	return err
}

// ListEvents returns one page of public events
func (c *Client) ListEvents(ctx context.Context, filter domain.EventListFilter) (*domain.EventPage, error) {
	filter.SetDefaults()

	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.Date != "" {
		q.Set("date", filter.Date)
	}
	q.Set("limit", strconv.Itoa(filter.Limit))
	q.Set("offset", strconv.Itoa(filter.Offset))

	var events []domain.Event
	env, err := c.do(ctx, call{
		op:     OpListEvents,
		method: http.MethodGet,
		path:   "/events?" + q.Encode(),
		out:    &events,
	})
	if err != nil {
		return nil, err
	}

	page := &domain.EventPage{Events: events, Total: int64(len(events))}
	if env.Meta != nil {
		page.Total = env.Meta.Total
	}
	return page, nil
}

// GetEvent fetches one event by id
func (c *Client) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	var event domain.Event
	if _, err := c.do(ctx, call{
		op:     OpGetEvent,
		method: http.MethodGet,
		path:   "/events/" + url.PathEscape(id),
		out:    &event,
	}); err != nil {
		return nil, err
	}
	return &event, nil
}

func escapeQuotes(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b = append(b, '\\')
		}
		b = append(b, s[i])
	}
	return string(b)
}
