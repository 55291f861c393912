package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger, send: smtp.SendMail}
}

// NotifyFailure tells the requester that a triple could not be extracted
// after all retries.
func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, jobID, tripleName, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	err := n.send(addr, nil, n.from, []string{userEmail}, n.failureMessage(userEmail, jobID, tripleName, errorMsg))
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("job_id", jobID),
	)
	return nil
}

func (n *SMTPNotifier) failureMessage(userEmail, jobID, tripleName, errorMsg string) []byte {
	subject := fmt.Sprintf("FaceForensics - Image extraction failed [Job %s]", jobID)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n", n.from, userEmail, subject)
	b.WriteString("Hello,\r\n\r\n")
	b.WriteString("Extracting images from your video triple has permanently failed after all retry attempts.\r\n\r\n")
	fmt.Fprintf(&b, "Job ID: %s\r\nVideo: %s\r\nError: %s\r\n\r\n", jobID, tripleName, errorMsg)
	b.WriteString("Check that the original, altered and mask videos belong together and have the same frame size.\r\n\r\n")
	b.WriteString("-- FaceForensics extraction worker")
	return []byte(b.String())
}
