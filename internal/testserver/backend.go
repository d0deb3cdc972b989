// Package testserver is an in-process fake of the event service backend.
// It speaks the same envelope and routes as the real service, records every
// request and lets tests inject failures per route or per upload.
package testserver

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/prohmpiriya/event-studio/internal/domain"
	"github.com/prohmpiriya/event-studio/pkg/logger"
	"github.com/prohmpiriya/event-studio/pkg/middleware"
	"github.com/prohmpiriya/event-studio/pkg/response"
)

// Options configures a Backend
type Options struct {
	Secret   string
	TokenTTL time.Duration
	// MediaBaseURL prefixes the URLs returned for uploads
	MediaBaseURL string
	// LegacyIDs makes created events carry _id instead of id
	LegacyIDs bool
	Logger    *logger.Logger
}

func (o *Options) setDefaults() {
	if o.Secret == "" {
		o.Secret = "testserver-secret"
	}
	if o.TokenTTL <= 0 {
		o.TokenTTL = time.Hour
	}
	if o.MediaBaseURL == "" {
		o.MediaBaseURL = "https://media.example.test"
	}
}

// Failure is an injected error response
type Failure struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
	// Drop closes the connection without a response
	Drop bool
}

func (f Failure) write(c *gin.Context) {
	if f.Drop {
		if hj, ok := c.Writer.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				c.Abort()
				return
			}
		}
	}
	status := f.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := f.Code
	if code == "" {
		code = response.ErrCodeInternalError
	}
	c.AbortWithStatusJSON(status, response.ErrorWithDetails(code, f.Message, f.Details))
}

type account struct {
	identity domain.Identity
	password string
}

// Upload is media received by the backend
type Upload struct {
	Filename    string
	ContentType string
	Size        int
	URL         string
	UserID      string
}

// Backend holds the fake service state
type Backend struct {
	opts     Options
	engine   *gin.Engine
	recorder *middleware.RequestRecorder

	mu             sync.Mutex
	accounts       map[string]*account // by email
	byID           map[string]*account
	events         []domain.Event
	uploads        []Upload
	revoked        map[string]bool
	routeFailures  map[string][]Failure
	uploadFailures map[int]Failure
	namedFailures  map[string]Failure
	uploadSeq      int
	uploadDelay    time.Duration
	inFlight       int
	maxInFlight    int
}

// New builds a Backend and its routes
func New(opts Options) *Backend {
	opts.setDefaults()

	b := &Backend{
		opts:           opts,
		accounts:       make(map[string]*account),
		byID:           make(map[string]*account),
		revoked:        make(map[string]bool),
		routeFailures:  make(map[string][]Failure),
		uploadFailures: make(map[int]Failure),
		namedFailures:  make(map[string]Failure),
	}

	recCfg := middleware.DefaultRecorderConfig()
	recCfg.Logger = opts.Logger
	b.recorder = middleware.NewRequestRecorder(recCfg)

	b.engine = gin.New()
	b.engine.Use(gin.Recovery(), middleware.RecordRequests(b.recorder), b.injectFailures)
	b.routes()

	return b
}

func (b *Backend) routes() {
	auth := middleware.JWTMiddleware(&middleware.JWTConfig{
		Secret:  b.opts.Secret,
		Revoked: b.isRevoked,
	})
	authors := middleware.RequireRole(string(domain.RoleOrganizer), string(domain.RoleAdmin))

	r := b.engine
	r.POST("/auth/login", b.login)
	r.POST("/auth/signup", b.signup)
	r.GET("/auth/me", auth, b.me)

	r.POST("/upload", auth, authors, b.upload)
	r.GET("/events", b.listEvents)
	r.GET("/events/:id", b.getEvent)
	r.POST("/events", auth, authors, b.createEvent)

	users := r.Group("/users", auth)
	users.PUT("/profile", b.updateProfile)
	users.PUT("/change-password", b.changePassword)
	users.POST("/upload-image", b.uploadProfileImage)

	admin := r.Group("/admin", auth, middleware.RequireRole(string(domain.RoleAdmin)))
	admin.POST("/events/:id/approve", b.approveEvent)
}

// Handler returns the HTTP handler serving the backend
func (b *Backend) Handler() http.Handler {
	return b.engine
}

// Recorder returns the request log
func (b *Backend) Recorder() *middleware.RequestRecorder {
	return b.recorder
}

// AddUser registers an account and returns its identity with an assigned ID
func (b *Backend) AddUser(identity domain.Identity, password string) domain.Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(identity, password)
}

func (b *Backend) addUserLocked(identity domain.Identity, password string) domain.Identity {
	if identity.ID == "" {
		identity.ID = uuid.New().String()
	}
	if identity.Role == "" {
		identity.Role = domain.RoleAttendee
	}
	identity.Email = strings.ToLower(identity.Email)
	acc := &account{identity: identity, password: password}
	b.accounts[identity.Email] = acc
	b.byID[identity.ID] = acc
	return identity
}

// RemoveUser deletes an account; tokens issued for it stop resolving
func (b *Backend) RemoveUser(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acc, ok := b.byID[id]; ok {
		delete(b.accounts, acc.identity.Email)
		delete(b.byID, id)
	}
}

// IssueToken signs a credential for identity valid for ttl (Options.TokenTTL when 0)
func (b *Backend) IssueToken(identity domain.Identity, ttl time.Duration) (domain.Credential, error) {
	if ttl == 0 {
		ttl = b.opts.TokenTTL
	}
	token, err := middleware.IssueToken(b.opts.Secret, middleware.Claims{
		UserID: identity.ID,
		Email:  identity.Email,
		Role:   string(identity.Role),
	}, ttl)
	return domain.Credential(token), err
}

// Revoke makes the server reject token with 401
func (b *Backend) Revoke(token domain.Credential) {
	b.mu.Lock()
	b.revoked[string(token)] = true
	b.mu.Unlock()
}

func (b *Backend) isRevoked(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked[token]
}

// FailNext queues f for the next request to route, e.g. "POST /events"
func (b *Backend) FailNext(route string, f Failure) {
	b.mu.Lock()
	b.routeFailures[route] = append(b.routeFailures[route], f)
	b.mu.Unlock()
}

// FailUpload fails the n-th (0-based) POST /upload to arrive
func (b *Backend) FailUpload(n int, f Failure) {
	b.mu.Lock()
	b.uploadFailures[n] = f
	b.mu.Unlock()
}

// FailUploadNamed fails every upload whose multipart filename is name
func (b *Backend) FailUploadNamed(name string, f Failure) {
	b.mu.Lock()
	b.namedFailures[name] = f
	b.mu.Unlock()
}

// SetUploadDelay holds each upload for d before answering
func (b *Backend) SetUploadDelay(d time.Duration) {
	b.mu.Lock()
	b.uploadDelay = d
	b.mu.Unlock()
}

// MaxConcurrentUploads reports the highest number of uploads in flight at once
func (b *Backend) MaxConcurrentUploads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInFlight
}

// Events returns the created events in creation order
func (b *Backend) Events() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Uploads returns every successful upload in arrival order
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Upload, len(b.uploads))
	copy(out, b.uploads)
	return out
}

// Identity returns the stored identity for id
func (b *Backend) Identity(id string) (domain.Identity, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.byID[id]
	if !ok {
		return domain.Identity{}, false
	}
	return acc.identity, true
}

func (b *Backend) injectFailures(c *gin.Context) {
	key := c.Request.Method + " " + c.FullPath()

	b.mu.Lock()
	queue := b.routeFailures[key]
	var f *Failure
	if len(queue) > 0 {
		f = &queue[0]
		b.routeFailures[key] = queue[1:]
	}
	b.mu.Unlock()

	if f != nil {
		f.write(c)
		return
	}
	c.Next()
}
