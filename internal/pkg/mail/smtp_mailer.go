package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/flowmarkt/flowmarkt/internal/pkg/env"
)

// SendMail sends an email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendWelcomeMail greets a newly registered user.
func SendWelcomeMail(to string, name string) error {
	subject := "Welcome to FlowMarkt"
	body := fmt.Sprintf("<p>Hi %s,</p><p>your FlowMarkt account is ready. Browse the marketplace and subscribe to your first automation.</p>", name)
	return SendMail(to, subject, body)
}

// SendAutomationApprovedMail notifies a seller that their listing went live.
func SendAutomationApprovedMail(to string, sellerName string, automationTitle string) error {
	subject := fmt.Sprintf("Your automation %q is live", automationTitle)
	body := fmt.Sprintf("<p>Hi %s,</p><p>your automation <strong>%s</strong> was approved and is now visible in the marketplace.</p>", sellerName, automationTitle)
	return SendMail(to, subject, body)
}
