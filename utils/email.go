package utils

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
	"time"
)

// ======================
// SMTP Configuration
// ======================
var (
	smtpHost      = os.Getenv("SMTP_HOST")
	smtpPort      = os.Getenv("SMTP_PORT")
	smtpUsername  = os.Getenv("SMTP_USERNAME")
	smtpPassword  = os.Getenv("SMTP_PASSWORD")
	smtpFromName  = os.Getenv("SMTP_FROM_NAME")
	smtpFromEmail = os.Getenv("SMTP_FROM_EMAIL")
	frontendURL   = os.Getenv("FRONTEND_URL")
)

func sendEmail(to, subject, body string) error {
	if smtpHost == "" || smtpUsername == "" || smtpPassword == "" {
		fmt.Println("⚠️ SMTP not configured. Email not sent.")
		return nil
	}

	if smtpFromEmail == "" {
		smtpFromEmail = smtpUsername
	}

	addr := fmt.Sprintf("%s:%s", smtpHost, smtpPort)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         smtpHost,
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", smtpUsername, smtpPassword, smtpHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth failed: %w", err)
	}

	if err := client.Mail(smtpFromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		smtpFromName, smtpFromEmail, to, subject, body)

	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}

// SendResetLink emails a password reset link to the user.
func SendResetLink(to, token string) error {
	base := frontendURL
	if base == "" {
		base = "http://localhost:8080"
	}
	link := fmt.Sprintf("%s/auth-pages/reset-password?token=%s", base, token)

	body := fmt.Sprintf(`
		<p>We received a request to reset your password.</p>
		<p><a href="%s">Click here to reset it</a>. The link expires in 15 minutes.</p>
		<p>If you did not request this, you can ignore this email.</p>`, link)

	return sendEmail(to, "Reset your password", body)
}

// SendBookingConfirmation emails the charging slot details after payment.
func SendBookingConfirmation(to, stationName, chargerType string, start, end time.Time) error {
	body := fmt.Sprintf(`
		<p>Your charging slot is confirmed.</p>
		<p><b>Station:</b> %s<br/>
		<b>Charger:</b> %s<br/>
		<b>From:</b> %s<br/>
		<b>To:</b> %s</p>
		<p>Please arrive a few minutes early. Cancellation closes 2 hours before the start time.</p>`,
		stationName, chargerType,
		start.Format("02 Jan 2006 15:04"), end.Format("02 Jan 2006 15:04"))

	return sendEmail(to, "Charging slot confirmed", body)
}
