package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/qs3c/fbads_go_server/config"
)

// ErrNotConfigured 未配置 SMTP
var ErrNotConfigured = errors.New("email: smtp not configured")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	cfg  *config.EmailConfig
	send sendFunc
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg, send: smtp.SendMail}
}

// Configured 是否配置了 SMTP 服务器
func (s *Service) Configured() bool {
	return s != nil && s.cfg != nil && s.cfg.SMTPHost != "" && s.cfg.From != ""
}

// SendPasswordReset 发送密码重置邮件
func (s *Service) SendPasswordReset(to, resetLink string) error {
	subject := "密码重置 - Facebook 广告分析平台"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #1877f2;">密码重置</h2>
        <p>您好，</p>
        <p>您正在请求重置密码，请点击下方按钮完成重置：</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #1877f2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">重置密码</a>
        </div>
        <p>或者复制以下链接到浏览器：</p>
        <p style="background-color: #f3f4f6; padding: 10px; word-break: break-all;">%s</p>
        <p>链接有效期为 1 小时。</p>
        <p>如果您没有请求重置密码，请忽略此邮件。</p>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, resetLink, resetLink)

	return s.sendHTML(to, subject, body)
}

// SendWelcome 发送欢迎邮件
func (s *Service) SendWelcome(to, name string) error {
	subject := "欢迎加入 - Facebook 广告分析平台"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #1877f2;">欢迎加入！</h2>
        <p>您好，%s！</p>
        <p>感谢您注册 Facebook 广告分析平台。</p>
        <p>现在您可以：</p>
        <ul>
            <li>连接 Facebook 广告账户</li>
            <li>查看广告系列和投放数据</li>
            <li>收藏广告资料库中的广告</li>
        </ul>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, name)

	return s.sendHTML(to, subject, body)
}

// SendPaymentFailed 发送扣款失败通知
func (s *Service) SendPaymentFailed(to, planName, billingLink string) error {
	subject := "扣款失败 - Facebook 广告分析平台"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #dc2626;">订阅扣款失败</h2>
        <p>您好，</p>
        <p>您的 %s 订阅本期扣款未成功，请更新支付方式以免影响使用：</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #1877f2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">更新支付方式</a>
        </div>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">此邮件由系统自动发送，请勿回复。</p>
    </div>
</body>
</html>
`, planName, billingLink)

	return s.sendHTML(to, subject, body)
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	if !s.Configured() {
		return ErrNotConfigured
	}

	headers := [][2]string{
		{"From", s.cfg.From},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("email: send to %s: %w", to, err)
	}
	return nil
}
