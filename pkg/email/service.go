package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const defaultSendGridHost = "https://api.sendgrid.com"

// Message is a rendered email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	HTML      string
	PlainText string
}

// Service handles email sending
type Service struct {
	fromEmail   string
	fromName    string
	baseURL     string
	sendGridKey string
	host        string
	useSendGrid bool
	log         logger.Logger
}

// NewService creates a new email service.
// If sendGridAPIKey is provided, emails will be sent via SendGrid.
// Otherwise, emails will be logged (development mode).
func NewService(fromEmail, fromName, baseURL, sendGridAPIKey string, log logger.Logger) *Service {
	log = logger.OrNop(log)
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Info("email service initialized with SendGrid")
	} else {
		log.Warn("email service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		baseURL:     strings.TrimRight(baseURL, "/"),
		sendGridKey: sendGridAPIKey,
		host:        defaultSendGridHost,
		useSendGrid: useSendGrid,
		log:         log,
	}
}

// SendLeadAssigned tells an agent a lead was assigned to them
func (s *Service) SendLeadAssigned(ctx context.Context, agent *schema.User, lead *schema.Lead) error {
	leadURL := fmt.Sprintf("%s/admin/leads/%d", s.baseURL, lead.ID)

	contact := lead.Email
	if contact == "" {
		contact = lead.Phone
	}

	subject := fmt.Sprintf("New lead assigned: %s", lead.FullName)
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>A lead has been assigned to you</h2>
			<p>Hi %s,</p>
			<p><strong>%s</strong> (%s) is now yours to follow up.</p>
			<p>Urgency: %s &middot; Score: %d</p>
			<p><a href="%s" style="background-color: #2196F3; color: white; padding: 14px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">Open lead</a></p>
			<p>Thanks,<br>%s</p>
		</body>
		</html>
	`, esc(agent.FullName), esc(lead.FullName), esc(contact), esc(string(lead.Urgency)), lead.Score, leadURL, esc(s.fromName))

	plainText := fmt.Sprintf(`
Hi %s,

%s (%s) has been assigned to you.
Urgency: %s, score: %d

%s

Thanks,
%s
	`, agent.FullName, lead.FullName, contact, lead.Urgency, lead.Score, leadURL, s.fromName)

	return s.Send(ctx, Message{ToEmail: agent.Email, ToName: agent.FullName, Subject: subject, HTML: body, PlainText: plainText})
}

// SendContactAcknowledgement confirms a website enquiry was received
func (s *Service) SendContactAcknowledgement(ctx context.Context, toEmail, toName string) error {
	subject := "We received your enquiry"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Thank you for contacting us</h2>
			<p>Hi %s,</p>
			<p>We received your message. One of our agents will get back to you shortly.</p>
			<p>In the meantime you can browse our listings at <a href="%s">%s</a>.</p>
			<p>Kind regards,<br>%s</p>
		</body>
		</html>
	`, esc(toName), s.baseURL, s.baseURL, esc(s.fromName))

	plainText := fmt.Sprintf(`
Hi %s,

We received your message. One of our agents will get back to you shortly.

Browse our listings: %s

Kind regards,
%s
	`, toName, s.baseURL, s.fromName)

	return s.Send(ctx, Message{ToEmail: toEmail, ToName: toName, Subject: subject, HTML: body, PlainText: plainText})
}

// SendStaleLeadReminder lists new leads an agent has not contacted yet
func (s *Service) SendStaleLeadReminder(ctx context.Context, agent *schema.User, leads []schema.Lead) error {
	if len(leads) == 0 {
		return nil
	}

	var items, lines strings.Builder
	for _, l := range leads {
		url := fmt.Sprintf("%s/admin/leads/%d", s.baseURL, l.ID)
		fmt.Fprintf(&items, `<li><a href="%s">%s</a> (since %s)</li>`, url, esc(l.FullName), l.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(&lines, "- %s: %s\n", l.FullName, url)
	}

	subject := fmt.Sprintf("%d lead(s) waiting for first contact", len(leads))
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Leads waiting for you</h2>
			<p>Hi %s,</p>
			<p>These leads are still in status <strong>new</strong>:</p>
			<ul>%s</ul>
		</body>
		</html>
	`, esc(agent.FullName), items.String())

	plainText := fmt.Sprintf("Hi %s,\n\nThese leads are still in status new:\n\n%s", agent.FullName, lines.String())

	return s.Send(ctx, Message{ToEmail: agent.Email, ToName: agent.FullName, Subject: subject, HTML: body, PlainText: plainText})
}

// SendAccountCreated welcomes a user whose account an admin created
func (s *Service) SendAccountCreated(ctx context.Context, user *schema.User) error {
	loginURL := s.baseURL + "/admin/login"

	subject := fmt.Sprintf("Your %s account", s.fromName)
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Welcome aboard!</h2>
			<p>Hi %s,</p>
			<p>An account with role <strong>%s</strong> was created for you.</p>
			<p><a href="%s">Sign in</a> with this email address and the password you were given.</p>
		</body>
		</html>
	`, esc(user.FullName), esc(string(user.Role)), loginURL)

	plainText := fmt.Sprintf("Hi %s,\n\nAn account with role %s was created for you.\nSign in at %s\n", user.FullName, user.Role, loginURL)

	return s.Send(ctx, Message{ToEmail: user.Email, ToName: user.FullName, Subject: subject, HTML: body, PlainText: plainText})
}

// Send delivers m through SendGrid, or logs it in development.
func (s *Service) Send(ctx context.Context, m Message) error {
	if m.ToEmail == "" {
		return fmt.Errorf("email has no recipient")
	}
	if s.useSendGrid {
		return s.sendViaSendGrid(ctx, m)
	}
	return s.logEmailToConsole(m)
}

// sendViaSendGrid sends email using SendGrid API
func (s *Service) sendViaSendGrid(ctx context.Context, m Message) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(m.ToName, m.ToEmail)
	message := mail.NewSingleEmail(from, m.Subject, to, m.PlainText, m.HTML)

	request := sendgrid.GetRequest(s.sendGridKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	client := &sendgrid.Client{Request: request}

	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		s.log.Error("sendgrid request failed", "to", m.ToEmail, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		s.log.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	s.log.Info("email sent", "to", m.ToEmail, "subject", m.Subject, "status", response.StatusCode)
	return nil
}

// logEmailToConsole logs email details (development mode)
func (s *Service) logEmailToConsole(m Message) error {
	s.log.Info("email not sent (development mode)",
		"to", fmt.Sprintf("%s <%s>", m.ToName, m.ToEmail),
		"from", fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail),
		"subject", m.Subject)
	return nil
}

func esc(s string) string {
	return html.EscapeString(s)
}
