package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"splitledger/config"
	"splitledger/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"google.golang.org/api/option"
)

// Notifier is told about ledger events after they are committed. Calls run
// on their own goroutine and must not block the request.
type Notifier interface {
	ExpenseAdded(expense models.Expense, currency string)
	SettlementRecorded(settlement models.Settlement, currency string)
	ExpenseSettled(expense models.Expense, payer models.User)
}

type NopNotifier struct{}

func (NopNotifier) ExpenseAdded(models.Expense, string)          {}
func (NopNotifier) SettlementRecorded(models.Settlement, string) {}
func (NopNotifier) ExpenseSettled(models.Expense, models.User)   {}

// NotificationService sends push notifications through FCM and email
// through SendGrid. Either channel is skipped when it is not configured.
type NotificationService struct {
	mail    *sendgrid.Client
	from    *mail.Email
	push    *messaging.Client
	appName string
}

func NewNotificationService(ctx context.Context, cfg *config.Config) *NotificationService {
	ns := &NotificationService{
		from:    mail.NewEmail(cfg.AppName, cfg.SendGridFrom),
		appName: cfg.AppName,
	}

	if cfg.SendGridAPIKey != "" {
		ns.mail = sendgrid.NewSendClient(cfg.SendGridAPIKey)
	} else {
		slog.Info("SendGrid API key not set, email notifications disabled")
	}

	if cfg.FirebaseCredPath != "" {
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FirebaseCredPath))
		if err != nil {
			slog.Warn("Firebase init failed, push notifications disabled", "error", err)
			return ns
		}
		client, err := app.Messaging(ctx)
		if err != nil {
			slog.Warn("FCM client init failed, push notifications disabled", "error", err)
			return ns
		}
		ns.push = client
	}
	return ns
}

// ============================================================
// PUSH NOTIFICATIONS via FCM
// ============================================================

func (ns *NotificationService) sendPush(token, title, body string, data map[string]string) {
	if ns.push == nil || token == "" {
		return
	}

	_, err := ns.push.Send(context.Background(), &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		slog.Warn("FCM send failed", "error", err)
	}
}

// ============================================================
// EMAIL NOTIFICATIONS via SendGrid
// ============================================================

func (ns *NotificationService) sendEmail(to models.User, subject, htmlBody string) {
	if ns.mail == nil || to.Email == "" {
		return
	}

	msg := mail.NewSingleEmail(ns.from, subject, mail.NewEmail(to.Name, to.Email), subject, htmlBody)
	resp, err := ns.mail.Send(msg)
	if err != nil {
		slog.Warn("Email send failed", "to", to.Email, "error", err)
		return
	}
	if resp.StatusCode >= 300 {
		slog.Warn("SendGrid rejected email", "to", to.Email, "status", resp.StatusCode)
		return
	}
	slog.Debug("Email sent", "to", to.Email)
}

// ============================================================
// NOTIFICATION EVENTS
// ============================================================

// ExpenseAdded tells every debtor what they owe for a new expense. In equal
// mode the shares are unsaved portions and carry no ID.
func (ns *NotificationService) ExpenseAdded(expense models.Expense, currency string) {
	for _, share := range expense.Shares {
		debtor := share.Debtor
		title := fmt.Sprintf("%s added an expense", expense.Payer.Name)
		body := fmt.Sprintf("You owe %s %s for \"%s\"", currency, share.AmountOwed.StringFixed(2), expense.Description)

		data := map[string]string{
			"type":       models.ActivityExpenseAdded,
			"expense_id": expense.ID.String(),
		}
		if share.ID != uuid.Nil {
			data["share_id"] = share.ID.String()
		}
		ns.sendPush(debtor.FCMToken, title, body, data)
		ns.sendEmail(debtor, fmt.Sprintf("%s added \"%s\"", expense.Payer.Name, expense.Description), renderEmail(expenseTmpl, map[string]interface{}{
			"Name":        debtor.Name,
			"PayerName":   expense.Payer.Name,
			"Description": expense.Description,
			"Currency":    currency,
			"Total":       expense.Amount.StringFixed(2),
			"Owed":        share.AmountOwed.StringFixed(2),
			"AppName":     ns.appName,
		}))
	}
}

// SettlementRecorded tells the receiver that they were paid.
func (ns *NotificationService) SettlementRecorded(settlement models.Settlement, currency string) {
	payer, payee := settlement.Payer, settlement.Payee
	title := fmt.Sprintf("%s paid you", payer.Name)
	body := fmt.Sprintf("%s paid you %s %s", payer.Name, currency, settlement.Amount.StringFixed(2))

	ns.sendPush(payee.FCMToken, title, body, map[string]string{
		"type":          models.ActivitySettlement,
		"settlement_id": settlement.ID.String(),
	})
	ns.sendEmail(payee, fmt.Sprintf("%s settled up with you", payer.Name), renderEmail(settlementTmpl, map[string]interface{}{
		"Name":      payee.Name,
		"PayerName": payer.Name,
		"Currency":  currency,
		"Amount":    settlement.Amount.StringFixed(2),
		"AppName":   ns.appName,
	}))
}

// ExpenseSettled tells the payer that every share of their expense is paid.
func (ns *NotificationService) ExpenseSettled(expense models.Expense, payer models.User) {
	title := "Expense fully settled"
	body := fmt.Sprintf("Everyone has paid their share of \"%s\"", expense.Description)

	ns.sendPush(payer.FCMToken, title, body, map[string]string{
		"type":       models.ActivityExpenseSettled,
		"expense_id": expense.ID.String(),
	})
	ns.sendEmail(payer, title, renderEmail(settledTmpl, map[string]interface{}{
		"Name":        payer.Name,
		"Description": expense.Description,
		"AppName":     ns.appName,
	}))
}

// ============================================================
// EMAIL TEMPLATES
// ============================================================

const emailLayout = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		<p>Hi <strong>{{.Name}}</strong>,</p>
		{{template "content" .}}
		<p style="color: #999; font-size: 12px; margin-top: 24px;">{{.AppName}}</p>
	</div>
</body>
</html>`

var (
	expenseTmpl = mustEmail(`{{define "content"}}
		<p><strong>{{.PayerName}}</strong> added a new expense:</p>
		<div style="background: #f8f9fa; border-radius: 8px; padding: 16px; margin: 16px 0;">
			<p style="margin: 4px 0; font-size: 18px;"><strong>{{.Description}}</strong></p>
			<p style="margin: 4px 0; color: #666;">Total: {{.Currency}} {{.Total}}</p>
			<p style="margin: 4px 0; color: #e53e3e; font-size: 18px;"><strong>Your share: {{.Currency}} {{.Owed}}</strong></p>
		</div>{{end}}`)

	settlementTmpl = mustEmail(`{{define "content"}}
		<p><strong>{{.PayerName}}</strong> recorded a payment of <strong>{{.Currency}} {{.Amount}}</strong> to you.</p>
		<p>Check the app to see your updated balance.</p>{{end}}`)

	settledTmpl = mustEmail(`{{define "content"}}
		<p>Every share of <strong>{{.Description}}</strong> has been paid.</p>{{end}}`)
)

func mustEmail(content string) *template.Template {
	return template.Must(template.Must(template.New("email").Parse(emailLayout)).Parse(content))
}

func renderEmail(t *template.Template, data map[string]interface{}) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		slog.Error("Email template failed", "error", err)
		return ""
	}
	return buf.String()
}
