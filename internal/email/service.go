// Package email sends account notices over SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email with a plain text fallback part.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("UTF-8", s.config.FromName), s.config.From)
	}

	const boundary = "lexdraft-alt"
	headers := [][2]string{
		{"To", strings.Join(to, ", ")},
		{"From", from},
		{"Subject", mime.QEncoding.Encode("UTF-8", subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": boundary})},
	}

	var msg bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	for _, part := range [][2]string{{"text/plain", textBody}, {"text/html", htmlBody}} {
		fmt.Fprintf(&msg, "\r\n--%s\r\nContent-Type: %s; charset=UTF-8\r\n\r\n%s\r\n", boundary, part[0], part[1])
	}
	fmt.Fprintf(&msg, "\r\n--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type VerificationDecisionData struct {
	AppName  string
	UserName string
	Approved bool
	Reason   string
}

// SendVerificationDecision tells an attorney whether their license was approved.
func (s *Service) SendVerificationDecision(to, userName string, approved bool, reason string) error {
	data := VerificationDecisionData{
		AppName:  "LexDraft",
		UserName: userName,
		Approved: approved,
		Reason:   reason,
	}

	subject := "[LexDraft] 변호사 인증이 승인되었습니다"
	text := fmt.Sprintf("%s 님, 변호사 인증이 승인되었습니다.", userName)
	if !approved {
		subject = "[LexDraft] 변호사 인증이 반려되었습니다"
		text = fmt.Sprintf("%s 님, 변호사 인증이 반려되었습니다. 사유: %s", userName, reason)
	}

	html, err := renderTemplate(decisionTmpl, data)
	if err != nil {
		return fmt.Errorf("render verification decision template: %w", err)
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

type SubmissionData struct {
	AppName       string
	UserName      string
	LicenseNumber string
}

// SendVerificationReceived confirms a license submission is queued for review.
func (s *Service) SendVerificationReceived(to, userName, licenseNumber string) error {
	html, err := renderTemplate(submissionTmpl, SubmissionData{
		AppName:       "LexDraft",
		UserName:      userName,
		LicenseNumber: licenseNumber,
	})
	if err != nil {
		return fmt.Errorf("render submission template: %w", err)
	}
	text := fmt.Sprintf("%s 님, 등록번호 %s 에 대한 변호사 인증 요청이 접수되었습니다.", userName, licenseNumber)
	return s.SendHTMLEmail([]string{to}, "[LexDraft] 변호사 인증 요청 접수", text, html)
}

var (
	decisionTmpl   = template.Must(template.New("decision").Parse(verificationDecisionTemplate))
	submissionTmpl = template.Must(template.New("submission").Parse(submissionTemplate))
)

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const verificationDecisionTemplate = `<!DOCTYPE html>
<html lang="ko">
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}} 변호사 인증 결과</title>
    <style>
        body { font-family: 'Apple SD Gothic Neo', 'Malgun Gothic', sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1f3a5f; padding-bottom: 10px; margin-bottom: 20px; }
        .reason { background: #fff3cd; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>{{.UserName}} 님, 안녕하세요.</p>
    {{if .Approved}}
    <p>제출하신 변호사 인증 요청이 <strong>승인</strong>되었습니다. 이제 사건을 배정받을 수 있습니다.</p>
    {{else}}
    <p>제출하신 변호사 인증 요청이 <strong>반려</strong>되었습니다.</p>
    {{if .Reason}}<div class="reason"><strong>반려 사유:</strong> {{.Reason}}</div>{{end}}
    <p>내용을 확인하신 뒤 다시 제출해 주세요.</p>
    {{end}}

    <div class="footer">
        <p>본 메일은 발신 전용입니다.</p>
    </div>
</body>
</html>`

const submissionTemplate = `<!DOCTYPE html>
<html lang="ko">
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}} 변호사 인증 요청 접수</title>
</head>
<body>
    <h1>{{.AppName}}</h1>
    <p>{{.UserName}} 님, 등록번호 <strong>{{.LicenseNumber}}</strong> 에 대한 변호사 인증 요청이 접수되었습니다.</p>
    <p>관리자 검토 후 결과를 메일로 안내해 드립니다.</p>
</body>
</html>`
