package integrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agentops/internal/apperr"
	"github.com/hugh/agentops/internal/audit"
	"github.com/hugh/agentops/internal/database/models"
	"github.com/hugh/agentops/pkg/config"
	"github.com/hugh/agentops/pkg/crypto"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const GoogleCalendarID = "google-calendar"

var (
	ErrCalendarNotConfigured = apperr.BadRequest("Google Calendar is not configured")
	ErrCalendarNotConnected  = apperr.BadRequest("Google Calendar is not connected")
)

type GoogleCalendarConfig struct {
	OAuth       config.OAuthProviderConfig
	StateSecret string
	// APIEndpoint overrides https://www.googleapis.com for calendar and
	// userinfo calls.
	APIEndpoint string
	// TokenURL overrides Google's token endpoint.
	TokenURL string
}

// GoogleCalendar runs the calendar OAuth flow and calls the Calendar API
// with the organization's stored, encrypted tokens.
type GoogleCalendar struct {
	svc       *Service
	oauth     *oauth2.Config
	state     *stateSigner
	encryptor *crypto.Encryptor
	endpoint  string
	logger    *slog.Logger
}

func NewGoogleCalendar(svc *Service, cfg GoogleCalendarConfig, encryptor *crypto.Encryptor) *GoogleCalendar {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &GoogleCalendar{
		svc: svc,
		oauth: &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.CallbackURL,
			Endpoint:     endpoint,
			Scopes: []string{
				calendar.CalendarScope,
				calendar.CalendarEventsScope,
				"openid",
				googleoauth2.UserinfoEmailScope,
				googleoauth2.UserinfoProfileScope,
			},
		},
		state:     &stateSigner{secret: []byte(cfg.StateSecret), now: time.Now},
		encryptor: encryptor,
		endpoint:  strings.TrimRight(cfg.APIEndpoint, "/"),
		logger:    svc.logger,
	}
}

func (g *GoogleCalendar) configured() error {
	if g.oauth.ClientID == "" {
		return ErrCalendarNotConfigured
	}
	return nil
}

// AuthURL asks for offline access with a forced consent prompt so Google
// always returns a refresh token.
func (g *GoogleCalendar) AuthURL(orgID, userID uuid.UUID) (string, error) {
	if err := g.configured(); err != nil {
		return "", err
	}
	state, err := g.state.sign(orgID, userID)
	if err != nil {
		return "", fmt.Errorf("signing state: %w", err)
	}
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Callback completes the flow: verifies state, exchanges the code, reads
// the account email and stores the tokens encrypted on the connection.
func (g *GoogleCalendar) Callback(ctx context.Context, state, code string) (*models.IntegrationConnection, error) {
	if err := g.configured(); err != nil {
		return nil, err
	}
	orgID, userID, err := g.state.verify(state)
	if err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperr.BadRequest("Missing authorization code")
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}

	email, err := g.accountEmail(ctx, g.oauth.TokenSource(ctx, token))
	if err != nil {
		return nil, err
	}

	conn := models.IntegrationConnection{
		OrganizationID: orgID,
		IntegrationID:  GoogleCalendarID,
		Status:         models.ConnectionConnected,
		Config:         "{}",
		AccountEmail:   email,
		ConnectedBy:    userID,
	}
	columns := []string{"status", "access_token", "token_expiry", "account_email", "connected_by", "updated_at"}
	if err := g.seal(&conn, token); err != nil {
		return nil, err
	}
	// Google omits the refresh token on some re-consents; keep the old one.
	if conn.RefreshToken != "" {
		columns = append(columns, "refresh_token")
	}
	if err := g.svc.upsert(ctx, &conn, columns...); err != nil {
		return nil, err
	}

	g.svc.recordAudit(ctx, audit.Entry{
		OrganizationID: orgID,
		UserID:         userID,
		Action:         audit.ActionIntegrationConnect,
		Meta:           map[string]any{"integrationId": GoogleCalendarID, "account": email},
	})
	return g.svc.connection(ctx, orgID, GoogleCalendarID)
}

func (g *GoogleCalendar) seal(conn *models.IntegrationConnection, token *oauth2.Token) error {
	access, err := g.encryptor.EncryptString(token.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypting access token: %w", err)
	}
	refresh, err := g.encryptor.EncryptString(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypting refresh token: %w", err)
	}
	conn.AccessToken = access
	conn.RefreshToken = refresh
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		conn.TokenExpiry = &expiry
	}
	return nil
}

func (g *GoogleCalendar) accountEmail(ctx context.Context, ts oauth2.TokenSource) (string, error) {
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint+"/"))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("google userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google userinfo: %w", err)
	}
	return info.Email, nil
}

// tokenSource returns a source over the stored token that writes refreshed
// tokens back to the connection.
func (g *GoogleCalendar) tokenSource(ctx context.Context, orgID uuid.UUID) (oauth2.TokenSource, *models.IntegrationConnection, error) {
	if err := g.configured(); err != nil {
		return nil, nil, err
	}
	conn, err := g.svc.connection(ctx, orgID, GoogleCalendarID)
	if errors.Is(err, errNoConnection) {
		return nil, nil, ErrCalendarNotConnected
	}
	if err != nil {
		return nil, nil, err
	}
	if conn.Status != models.ConnectionConnected || conn.AccessToken == "" {
		return nil, nil, ErrCalendarNotConnected
	}

	access, err := g.encryptor.DecryptString(conn.AccessToken)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting access token: %w", err)
	}
	refresh, err := g.encryptor.DecryptString(conn.RefreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting refresh token: %w", err)
	}
	token := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	if conn.TokenExpiry != nil {
		token.Expiry = *conn.TokenExpiry
	}

	ps := &persistingSource{
		base:    g.oauth.TokenSource(ctx, token),
		current: access,
		save: func(t *oauth2.Token) error {
			updated := *conn
			if err := g.seal(&updated, t); err != nil {
				return err
			}
			updates := map[string]interface{}{"access_token": updated.AccessToken, "token_expiry": updated.TokenExpiry}
			if t.RefreshToken != "" && t.RefreshToken != refresh {
				updates["refresh_token"] = updated.RefreshToken
			}
			return g.svc.db.WithContext(ctx).Model(&models.IntegrationConnection{}).
				Where("id = ?", conn.ID).Updates(updates).Error
		},
		logger: g.logger,
	}
	return ps, conn, nil
}

type persistingSource struct {
	mu      sync.Mutex
	base    oauth2.TokenSource
	current string
	save    func(*oauth2.Token) error
	logger  *slog.Logger
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	t, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.AccessToken != p.current {
		if err := p.save(t); err != nil {
			p.logger.Warn("storing refreshed calendar token failed", "error", err)
		} else {
			p.current = t.AccessToken
		}
	}
	return t, nil
}

func (g *GoogleCalendar) client(ctx context.Context, orgID uuid.UUID) (*calendar.Service, error) {
	ts, _, err := g.tokenSource(ctx, orgID)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint+"/calendar/v3/"))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar client: %w", err)
	}
	return svc, nil
}

type Calendar struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary"`
}

func (g *GoogleCalendar) Calendars(ctx context.Context, orgID uuid.UUID) ([]Calendar, error) {
	svc, err := g.client(ctx, orgID)
	if err != nil {
		return nil, err
	}
	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}
	out := make([]Calendar, 0, len(list.Items))
	for _, c := range list.Items {
		out = append(out, Calendar{ID: c.Id, Summary: c.Summary, Primary: c.Primary})
	}
	return out, nil
}

type Event struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	HTMLLink    string `json:"htmlLink,omitempty"`
	MeetLink    string `json:"meetLink,omitempty"`
}

func eventFrom(e *calendar.Event) Event {
	ev := Event{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		HTMLLink:    e.HtmlLink,
		MeetLink:    e.HangoutLink,
	}
	if e.Start != nil {
		ev.Start = firstNonEmpty(e.Start.DateTime, e.Start.Date)
	}
	if e.End != nil {
		ev.End = firstNonEmpty(e.End.DateTime, e.End.Date)
	}
	return ev
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

const (
	primaryCalendar = "primary"
	maxEvents       = 10
)

// Events lists upcoming single events ordered by start time. from defaults
// to now.
func (g *GoogleCalendar) Events(ctx context.Context, orgID uuid.UUID, calendarID string, from, to *time.Time) ([]Event, error) {
	svc, err := g.client(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if calendarID == "" {
		calendarID = primaryCalendar
	}
	timeMin := time.Now()
	if from != nil {
		timeMin = *from
	}

	call := svc.Events.List(calendarID).
		TimeMin(timeMin.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxEvents)
	if to != nil {
		call = call.TimeMax(to.UTC().Format(time.RFC3339))
	}
	events, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}

	out := make([]Event, 0, len(events.Items))
	for _, e := range events.Items {
		out = append(out, eventFrom(e))
	}
	return out, nil
}

type CreateEventInput struct {
	CalendarID  string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// CreateEvent inserts the event with a Google Meet conference. Calendars that
// refuse conference data get the plain event instead.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, orgID uuid.UUID, in CreateEventInput) (*Event, error) {
	if !in.End.After(in.Start) {
		return nil, apperr.BadRequest("end must be after start")
	}
	svc, err := g.client(ctx, orgID)
	if err != nil {
		return nil, err
	}
	calendarID := in.CalendarID
	if calendarID == "" {
		calendarID = primaryCalendar
	}

	build := func() *calendar.Event {
		return &calendar.Event{
			Summary:     in.Summary,
			Description: in.Description,
			Start:       &calendar.EventDateTime{DateTime: in.Start.UTC().Format(time.RFC3339)},
			End:         &calendar.EventDateTime{DateTime: in.End.UTC().Format(time.RFC3339)},
		}
	}

	withMeet := build()
	withMeet.ConferenceData = &calendar.ConferenceData{
		CreateRequest: &calendar.CreateConferenceRequest{
			RequestId:             uuid.NewString(),
			ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: "hangoutsMeet"},
		},
	}
	created, err := svc.Events.Insert(calendarID, withMeet).ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		g.logger.WarnContext(ctx, "event insert with conference failed, retrying without", "calendar_id", calendarID, "error", err)
		created, err = svc.Events.Insert(calendarID, build()).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("creating event: %w", err)
		}
	}

	ev := eventFrom(created)
	return &ev, nil
}

type Account struct {
	Connected   bool       `json:"connected"`
	Email       string     `json:"email,omitempty"`
	TokenExpiry *time.Time `json:"tokenExpiry,omitempty"`
}

func (g *GoogleCalendar) Account(ctx context.Context, orgID uuid.UUID) (*Account, error) {
	conn, err := g.svc.connection(ctx, orgID, GoogleCalendarID)
	if errors.Is(err, errNoConnection) {
		return &Account{}, nil
	}
	if err != nil {
		return nil, err
	}
	if conn.Status != models.ConnectionConnected {
		return &Account{}, nil
	}
	return &Account{Connected: true, Email: conn.AccountEmail, TokenExpiry: conn.TokenExpiry}, nil
}

func (g *GoogleCalendar) Disconnect(ctx context.Context, orgID, userID uuid.UUID) error {
	return g.svc.Disconnect(ctx, orgID, userID, GoogleCalendarID)
}
