package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"postbase/internal/config"
	"postbase/internal/logger"
	"strings"
	"time"

	"go.uber.org/zap"
)

var passwordChangedTmpl = template.Must(template.New("password_changed").Parse(
	`<p>您好 {{.Username}}，</p>
<p>您的 postbase 账号密码已于 {{.Time}} 修改。</p>
<p>如果这不是您本人的操作，请立即通过 <a href="{{.ResetURL}}">{{.ResetURL}}</a> 重置密码。</p>`))

var passwordResetTmpl = template.Must(template.New("password_reset").Parse(
	`<p>您正在重置 postbase 账号的密码。</p>
<p>验证码：<strong>{{.Code}}</strong>，{{.Minutes}} 分钟内有效。</p>
<p>如果这不是您本人的操作，请忽略此邮件。</p>`))

type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Enabled  bool

	// send 可替换，测试时不真正发信
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailService(cfg *config.Config) *MailService {
	enabled := cfg.SMTPEnabled()
	if !enabled {
		logger.L().Info("MailService disabled: missing SMTP settings")
	}

	return &MailService{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Enabled:  enabled,
		send:     smtp.SendMail,
	}
}

func (s *MailService) buildMessage(to []string, subject, body string) []byte {
	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	return []byte(fmt.Sprintf("To: %s\r\n"+
		"From: postbase <%s>\r\n"+
		"Subject: %s\r\n"+
		"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))
}

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.Enabled {
		return
	}

	go func() {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

		if err := s.send(addr, auth, s.From, to, s.buildMessage(to, subject, body)); err != nil {
			logger.L().Warn("send email failed", zap.Strings("to", to), zap.Error(err))
			return
		}
		logger.L().Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
	}()
}

// SendPasswordChanged 密码修改提醒
func (s *MailService) SendPasswordChanged(email, username, when, resetURL string) {
	var buf bytes.Buffer
	err := passwordChangedTmpl.Execute(&buf, map[string]string{
		"Username": username,
		"Time":     when,
		"ResetURL": resetURL,
	})
	if err != nil {
		logger.L().Warn("render password changed email failed", zap.Error(err))
		return
	}
	s.sendAsync([]string{email}, "[postbase] 安全提醒：您的密码已修改", buf.String())
}

// SendPasswordReset 找回密码验证码
func (s *MailService) SendPasswordReset(email, code string, ttl time.Duration) {
	var buf bytes.Buffer
	err := passwordResetTmpl.Execute(&buf, map[string]interface{}{
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})
	if err != nil {
		logger.L().Warn("render password reset email failed", zap.Error(err))
		return
	}
	s.sendAsync([]string{email}, "[postbase] 安全提醒：您正在申请重置密码", buf.String())
}
