package service

import (
	"context"
	"fmt"
	"log"

	"moa-be/internal/config"

	"github.com/resend/resend-go/v2"
)

// EmailService sends party lifecycle notices. Sends are best-effort: a
// failed notice is logged and never blocks a payment flow.
type EmailService struct {
	client *resend.Client
	from   string
}

func NewEmailService() *EmailService {
	appConfig := config.GetConfig()
	return &EmailService{
		client: resend.NewClient(appConfig.Email.ResendAPIKey),
		from:   fmt.Sprintf("%s <%s>", appConfig.Email.FromName, appConfig.Email.FromEmail),
	}
}

// SendPartyActivated notifies a member that the party is live and the
// shared credential is available.
func (es *EmailService) SendPartyActivated(ctx context.Context, email, fullName, partyName string) {
	html := fmt.Sprintf(`
	<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
		<h2>%s is now active</h2>
		<p>Hi %s,</p>
		<p>Your party <strong>%s</strong> is active. The shared account
		credential is now available on the party page.</p>
	</div>`, partyName, fullName, partyName)

	es.send(ctx, email, fmt.Sprintf("%s is now active", partyName), html)
}

// SendMemberJoined notifies the leader that a new member paid and joined.
func (es *EmailService) SendMemberJoined(ctx context.Context, email, leaderName, memberName, partyName string) {
	html := fmt.Sprintf(`
	<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
		<h2>New member in %s</h2>
		<p>Hi %s,</p>
		<p><strong>%s</strong> paid their deposit and first charge and joined
		<strong>%s</strong>.</p>
	</div>`, partyName, leaderName, memberName, partyName)

	es.send(ctx, email, fmt.Sprintf("New member joined %s", partyName), html)
}

func (es *EmailService) send(ctx context.Context, to, subject, html string) {
	params := &resend.SendEmailRequest{
		From:    es.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	if _, err := es.client.Emails.SendWithContext(ctx, params); err != nil {
		log.Printf("Failed to send email to %s: %v", to, err)
	}
}
