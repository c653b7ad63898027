package alert

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/Coldness00/Fumes-Detector/internal/utils"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
)

const (
	sinkName       = "alert"
	dialTimeout    = 10 * time.Second
	sessionTimeout = 30 * time.Second
	maxRawTextSize = 2000
)

// Options configures the SMTP notifier
type Options struct {
	Address   string
	Username  string
	Password  string
	StartTLS  bool
	From      string
	To        []string
	Threshold float64
	Answers   []string
	Camera    string
}

// SMTPNotifier e-mails an alert when a verdict reports fumes with enough confidence
type SMTPNotifier struct {
	opts          Options
	answers       map[core.Answer]struct{}
	link          func(imageID string) string
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// NewSMTPNotifier creates a new notifier. link may be nil.
func NewSMTPNotifier(opts Options, link func(string) string, textProcessor *utils.TextProcessor, logger *zap.Logger) *SMTPNotifier {
	answers := make(map[core.Answer]struct{}, len(opts.Answers))
	for _, a := range opts.Answers {
		answers[core.Answer(strings.ToLower(strings.TrimSpace(a)))] = struct{}{}
	}
	if len(answers) == 0 {
		answers[core.AnswerYes] = struct{}{}
	}

	return &SMTPNotifier{
		opts:          opts,
		answers:       answers,
		link:          link,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Name returns the sink name
func (n *SMTPNotifier) Name() string {
	return sinkName
}

// ShouldAlert reports whether the verdict crosses the alert threshold
func (n *SMTPNotifier) ShouldAlert(verdict *core.Verdict) bool {
	if _, ok := n.answers[verdict.Answer]; !ok {
		return false
	}
	return verdict.Confidence >= n.opts.Threshold
}

// Publish sends an alert for qualifying verdicts and logs any failure
func (n *SMTPNotifier) Publish(ctx context.Context, verdict *core.Verdict) {
	if !n.ShouldAlert(verdict) {
		return
	}
	if len(n.opts.To) == 0 {
		n.logger.Warn("Alert triggered but no recipients configured", zap.String("image", verdict.ImageID))
		return
	}

	if err := n.send(ctx, verdict); err != nil {
		n.logger.Warn("Failed to send alert",
			zap.String("image", verdict.ImageID),
			zap.Error(&core.TelemetryError{Sink: sinkName, Err: err}))
		return
	}

	n.logger.Info("Alert sent",
		zap.String("image", verdict.ImageID),
		zap.String("answer", string(verdict.Answer)),
		zap.Float64("confidence", verdict.Confidence),
		zap.Strings("recipients", n.opts.To))
}

// send delivers the alert message to the configured relay
func (n *SMTPNotifier) send(ctx context.Context, verdict *core.Verdict) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", n.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(sessionTimeout)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if n.opts.StartTLS {
		host, _, err := net.SplitHostPort(n.opts.Address)
		if err != nil {
			host = n.opts.Address
		}
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if n.opts.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", n.opts.Username, n.opts.Password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(n.opts.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range n.opts.To {
		if err := c.Rcpt(recipient, nil); err != nil {
			n.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(n.buildMessage(verdict)); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

func (n *SMTPNotifier) buildMessage(verdict *core.Verdict) []byte {
	camera := n.opts.Camera
	if camera == "" {
		camera = "camera"
	}
	recordedAt := verdict.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.opts.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.opts.To, ", "))
	fmt.Fprintf(&msg, "Subject: [%s] Fumes detected: %s (%.0f%%)\r\n", camera, verdict.Answer, verdict.Confidence*100)
	fmt.Fprintf(&msg, "Date: %s\r\n", recordedAt.Format(time.RFC1123Z))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=utf-8\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "Camera: %s\r\n", camera)
	fmt.Fprintf(&msg, "Image: %s\r\n", verdict.ImageID)
	fmt.Fprintf(&msg, "Answer: %s\r\n", verdict.Answer)
	fmt.Fprintf(&msg, "Confidence: %.2f\r\n", verdict.Confidence)
	if n.link != nil {
		if link := n.link(verdict.ImageID); link != "" {
			fmt.Fprintf(&msg, "Link: %s\r\n", link)
		}
	}
	fmt.Fprintf(&msg, "\r\n")

	rawText := n.textProcessor.TruncateText(verdict.RawText, maxRawTextSize)
	rawText = strings.ReplaceAll(rawText, "\r\n", "\n")
	msg.WriteString(strings.ReplaceAll(rawText, "\n", "\r\n"))
	msg.WriteString("\r\n")

	return msg.Bytes()
}
