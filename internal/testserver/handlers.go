package testserver

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/pkg/middleware"
	"github.com/prohmpiriya/event-studio/pkg/response"
)

const maxUploadSize = 10 << 20

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  domain.Identity `json:"user"`
}

func (b *Backend) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	b.mu.Lock()
	acc, ok := b.accounts[strings.ToLower(req.Email)]
	b.mu.Unlock()

	if !ok || acc.password != req.Password {
		c.JSON(http.StatusUnauthorized, response.InvalidCredentials())
		return
	}

	b.respondAuth(c, http.StatusOK, acc.identity)
}

func (b *Backend) signup(c *gin.Context) {
	var reg domain.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	details := map[string]string{}
	if !strings.Contains(reg.Email, "@") {
		details["email"] = "must be a valid email address"
	}
	if len(reg.Password) < 6 {
		details["password"] = "must be at least 6 characters"
	}
	if reg.FirstName == "" {
		details["firstName"] = "is required"
	}
	if reg.LastName == "" {
		details["lastName"] = "is required"
	}
	// Admins are never self-registered
	if reg.UserType != domain.RoleAttendee && reg.UserType != domain.RoleOrganizer {
		details["userType"] = "must be attendee or organizer"
	}
	if len(details) > 0 {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(details))
		return
	}

	email := strings.ToLower(reg.Email)

	b.mu.Lock()
	if _, exists := b.accounts[email]; exists {
		b.mu.Unlock()
		c.JSON(http.StatusConflict, response.ErrorWithDetails(response.ErrCodeDuplicateEntry,
			"Email already registered", map[string]string{"email": "is already registered"}))
		return
	}
	identity := b.addUserLocked(domain.Identity{
		FirstName:   reg.FirstName,
		LastName:    reg.LastName,
		Email:       email,
		Role:        reg.UserType,
		PhoneNumber: reg.PhoneNumber,
	}, reg.Password)
	b.mu.Unlock()

	b.respondAuth(c, http.StatusCreated, identity)
}

func (b *Backend) respondAuth(c *gin.Context, status int, identity domain.Identity) {
	token, err := b.IssueToken(identity, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to issue token"))
		return
	}
	c.JSON(status, response.Success(authResponse{Token: string(token), User: identity}))
}

func (b *Backend) currentAccount(c *gin.Context) (*account, bool) {
	userID, _ := middleware.GetUserID(c)

	b.mu.Lock()
	acc, ok := b.byID[userID]
	b.mu.Unlock()

	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized("User no longer exists"))
		return nil, false
	}
	return acc, true
}

func (b *Backend) me(c *gin.Context) {
	acc, ok := b.currentAccount(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response.Success(acc.identity))
}

type uploadResponse struct {
	URL string `json:"url"`
}

// receiveImage reads the multipart "image" field and stores it
func (b *Backend) receiveImage(c *gin.Context, folder string) (Upload, bool) {
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(map[string]string{"image": "is required"}))
		return Upload{}, false
	}
	if fh.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, response.Error(response.ErrCodePayloadTooLarge, "Image exceeds 10MB"))
		return Upload{}, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Unreadable upload"))
		return Upload{}, false
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Unreadable upload"))
		return Upload{}, false
	}

	mt := mimetype.Detect(content)
	userID, _ := middleware.GetUserID(c)

	return Upload{
		Filename:    fh.Filename,
		ContentType: mt.String(),
		Size:        len(content),
		URL:         b.opts.MediaBaseURL + "/" + folder + "/" + uuid.New().String() + mt.Extension(),
		UserID:      userID,
	}, true
}

func (b *Backend) upload(c *gin.Context) {
	b.mu.Lock()
	seq := b.uploadSeq
	b.uploadSeq++
	f, failIndex := b.uploadFailures[seq]
	delay := b.uploadDelay
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			return
		}
	}

	if failIndex {
		f.write(c)
		return
	}

	up, ok := b.receiveImage(c, "events")
	if !ok {
		return
	}

	b.mu.Lock()
	nf, failNamed := b.namedFailures[up.Filename]
	if !failNamed {
		b.uploads = append(b.uploads, up)
	}
	b.mu.Unlock()

	if failNamed {
		nf.write(c)
		return
	}

	c.JSON(http.StatusOK, response.Success(uploadResponse{URL: up.URL}))
}

func validateEvent(p *domain.EventPayload) map[string]string {
	details := map[string]string{}
	if strings.TrimSpace(p.Title) == "" {
		details["title"] = "is required"
	}
	if strings.TrimSpace(p.Description) == "" {
		details["description"] = "is required"
	}
	if !domain.IsValidCategory(p.Category) {
		details["category"] = "is invalid"
	}
	if p.Date.IsZero() {
		details["date"] = "is required"
	}
	if p.Location.Address == "" || p.Location.City == "" || p.Location.State == "" || p.Location.Country == "" {
		details["location"] = "address, city, state and country are required"
	}
	if len(p.TicketTiers) == 0 {
		details["ticketTiers"] = "at least one tier is required"
	}
	for i, tier := range p.TicketTiers {
		if tier.Name == "" || tier.Price < 0 || tier.Quantity < 1 {
			details["ticketTiers."+strconv.Itoa(i)] = "name, price >= 0 and quantity >= 1 are required"
		}
	}
	return details
}

func (b *Backend) createEvent(c *gin.Context) {
	var payload domain.EventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	if details := validateEvent(&payload); len(details) > 0 {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(details))
		return
	}

	userID, _ := middleware.GetUserID(c)
	event := domain.Event{
		Title:       payload.Title,
		Description: payload.Description,
		Category:    payload.Category,
		Date:        payload.Date,
		Location:    payload.Location,
		TicketTiers: payload.TicketTiers,
		Images:      payload.Images,
		Organizer:   userID,
		Status:      domain.EventStatusPending,
	}
	if event.Images == nil {
		event.Images = []string{}
	}

	id := uuid.New().String()
	if b.opts.LegacyIDs {
		event.LegacyID = id
	} else {
		event.ID = id
	}

	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()

	c.JSON(http.StatusCreated, response.Success(event))
}

func (b *Backend) findEvent(id string) (int, bool) {
	for i := range b.events {
		if b.events[i].ResourceID() == id {
			return i, true
		}
	}
	return -1, false
}

func (b *Backend) getEvent(c *gin.Context) {
	b.mu.Lock()
	i, ok := b.findEvent(c.Param("id"))
	var event domain.Event
	if ok {
		event = b.events[i]
	}
	b.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
		return
	}
	c.JSON(http.StatusOK, response.Success(event))
}

func (b *Backend) listEvents(c *gin.Context) {
	filter := domain.EventListFilter{
		Category: c.Query("category"),
		Search:   strings.ToLower(c.Query("search")),
		Date:     c.Query("date"),
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))
	filter.SetDefaults()

	b.mu.Lock()
	matched := make([]domain.Event, 0, len(b.events))
	for _, e := range b.events {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(e.Title+" "+e.Description), filter.Search) {
			continue
		}
		if filter.Date != "" && e.Date.Format("2006-01-02") != filter.Date {
			continue
		}
		matched = append(matched, e)
	}
	b.mu.Unlock()

	total := int64(len(matched))
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := filter.Offset/filter.Limit + 1
	c.JSON(http.StatusOK, response.Paginated(matched[start:end], page, filter.Limit, total))
}

func (b *Backend) approveEvent(c *gin.Context) {
	b.mu.Lock()
	i, ok := b.findEvent(c.Param("id"))
	var event domain.Event
	if ok {
		b.events[i].Status = domain.EventStatusApproved
		event = b.events[i]
	}
	b.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, response.NotFound("Event not found"))
		return
	}
	c.JSON(http.StatusOK, response.Success(event))
}

func (b *Backend) updateProfile(c *gin.Context) {
	acc, ok := b.currentAccount(c)
	if !ok {
		return
	}

	var update domain.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}
	if update.Email != "" && !strings.Contains(update.Email, "@") {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(map[string]string{"email": "must be a valid email address"}))
		return
	}

	b.mu.Lock()
	id := &acc.identity
	if update.FirstName != "" {
		id.FirstName = update.FirstName
	}
	if update.LastName != "" {
		id.LastName = update.LastName
	}
	if update.Email != "" && update.Email != id.Email {
		delete(b.accounts, id.Email)
		id.Email = strings.ToLower(update.Email)
		b.accounts[id.Email] = acc
	}
	id.PhoneNumber = update.PhoneNumber
	if update.ProfileImage != "" {
		id.ProfileImage = update.ProfileImage
	}
	identity := *id
	b.mu.Unlock()

	c.JSON(http.StatusOK, response.Success(identity))
}

func (b *Backend) changePassword(c *gin.Context) {
	acc, ok := b.currentAccount(c)
	if !ok {
		return
	}

	var req domain.PasswordChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("Invalid request body"))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if acc.password != req.CurrentPassword {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(map[string]string{"currentPassword": "is incorrect"}))
		return
	}
	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, response.ValidationFailed(map[string]string{"newPassword": "must be at least 6 characters"}))
		return
	}
	acc.password = req.NewPassword
	c.JSON(http.StatusOK, response.Success(gin.H{"message": "Password updated"}))
}

func (b *Backend) uploadProfileImage(c *gin.Context) {
	up, ok := b.receiveImage(c, "profiles")
	if !ok {
		return
	}
	b.mu.Lock()
	b.uploads = append(b.uploads, up)
	b.mu.Unlock()
	c.JSON(http.StatusOK, response.Success(uploadResponse{URL: up.URL}))
}
