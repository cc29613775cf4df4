package sink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/edirooss/slowdog/internal/watchdog"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	smtpDialTimeout    = 5 * time.Second
	smtpSessionTimeout = 30 * time.Second
)

var ErrNoRecipients = errors.New("email sink: no recipients")

type EmailOptions struct {
	Addr     string // SMTP host:port
	Username string
	Password string
	From     string
	To       []string
	// PerMinute caps sent reports; excess reports are dropped.
	PerMinute int
}

// EmailSink mails reports. Delivery is best-effort: failures and rate-limited
// drops are logged and never returned.
type EmailSink struct {
	log     *zap.Logger
	opts    EmailOptions
	limiter *rate.Limiter

	sendMail func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

func NewEmailSink(log *zap.Logger, opts EmailOptions) *EmailSink {
	if opts.PerMinute <= 0 {
		opts.PerMinute = 6
	}
	return &EmailSink{
		log:      log.Named("email_sink"),
		opts:     opts,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), opts.PerMinute),
		sendMail: sendMail,
		now:      time.Now,
	}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, r *watchdog.Report) error {
	if !s.limiter.Allow() {
		s.log.Warn("report email rate limited", zap.Stringer("report_id", r.ID))
		return nil
	}
	if err := s.Send(ctx, r.Subject(), r.Text()); err != nil {
		s.log.Debug("report email failed", zap.Stringer("report_id", r.ID), zap.Error(err))
	}
	return nil
}

// Send mails body to the configured recipients. The SMTP exchange is
// abandoned when ctx ends.
func (s *EmailSink) Send(ctx context.Context, subject, body string) error {
	if len(s.opts.To) == 0 {
		return ErrNoRecipients
	}

	var auth smtp.Auth
	if s.opts.Username != "" {
		host, _, err := net.SplitHostPort(s.opts.Addr)
		if err != nil {
			return fmt.Errorf("smtp address: %w", err)
		}
		auth = smtp.PlainAuth("", s.opts.Username, s.opts.Password, host)
	}

	if err := s.sendMail(ctx, s.opts.Addr, auth, s.opts.From, s.opts.To, s.message(subject, body)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *EmailSink) message(subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.opts.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.opts.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerSafe(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// sendMail is smtp.SendMail with a dial timeout and a connection deadline
// taken from ctx, so an unresponsive server cannot hold the caller forever.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	d := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(smtpSessionTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// headerSafe keeps a header value on one line.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
