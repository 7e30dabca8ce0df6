// Package mail はトランザクションメールの組み立てと送信を提供する。
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Message は送信する1通のメール。本文はプレーンテキストとHTMLの両方を持つ。
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPConfig はSMTP送信の設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer はSMTPサーバー経由でメールを送信する。
type SMTPMailer struct {
	config SMTPConfig
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer は新しいSMTPMailerを生成する。
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{config: config}
}

// Send はmultipart/alternativeのメールを組み立ててSMTPで送信する。
// 認証情報が設定されている場合のみSMTP認証を行う。
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	gm, err := buildMessage(m.config.From, msg)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(m.config.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.config.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.config.Username),
			gomail.WithPassword(m.config.Password),
		)
	}

	client, err := gomail.NewClient(m.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, gm); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	return nil
}

// buildMessage はMessageをgo-mailのメッセージに変換する。
func buildMessage(from string, msg *Message) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if err := gm.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	gm.Subject(msg.Subject)
	gm.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	if msg.HTMLBody != "" {
		gm.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}
	return gm, nil
}

// LogMailer はメールを送信せずログに出力する。開発環境用。
type LogMailer struct {
	logger *slog.Logger
	from   string
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer は新しいLogMailerを生成する。loggerがnilの場合はデフォルトロガーを使用する。
func NewLogMailer(logger *slog.Logger, from string) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger, from: from}
}

// Send はメールの内容をINFOレベルで出力する。
func (m *LogMailer) Send(ctx context.Context, msg *Message) error {
	if _, err := buildMessage(m.from, msg); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "mail",
		slog.String("from", m.from),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.TextBody),
	)
	return nil
}
