// internal/services/email.go
package services

import (
	"fmt"

	"adboard-backend/internal/config"
	"adboard-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// EmailService sends transactional mail over SMTP. When no SMTP host is
// configured every send becomes a logged no-op so local setups work without
// a mail server.
type EmailService struct {
	cfg *config.Config
	log *logrus.Logger
}

func NewEmailService(cfg *config.Config, log *logrus.Logger) *EmailService {
	return &EmailService{cfg: cfg, log: log}
}

func (s *EmailService) configured() bool {
	return s.cfg.SMTPHost != "" && s.cfg.SMTPFrom != ""
}

// SendWelcome mails the onboarding message to a new user.
func (s *EmailService) SendWelcome(user *models.User) error {
	if !s.configured() {
		s.log.WithField("email", user.Email).Debug("smtp not configured, skipping welcome email")
		return nil
	}

	body := fmt.Sprintf(
		"<h2>Welcome to AdBoard, %s!</h2>"+
			"<p>Your account is ready. Log in to list your billboards or find advertising space near you.</p>",
		user.Name,
	)

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SMTPFrom)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Welcome to AdBoard")
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	s.log.WithField("email", user.Email).Info("welcome email sent")
	return nil
}
