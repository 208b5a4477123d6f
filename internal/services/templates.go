package services

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"github.com/harentsoaR/prescripto-api/internal/models"
)

type messageTemplate struct {
	subject string
	html    *template.Template
	text    *texttemplate.Template
}

const emailLayout = `<div style="font-family:Arial,sans-serif;max-width:560px;margin:auto;color:#262626">
<h2 style="color:#5f6fff">Prescripto</h2>
{{template "content" .}}
<p style="font-size:12px;color:#888">This is an automated message, please do not reply.</p>
</div>`

func emailTemplate(name, subject, content string) messageTemplate {
	t := template.Must(template.New(name).Parse(emailLayout))
	template.Must(t.New("content").Parse(content))
	return messageTemplate{subject: subject, html: t}
}

func smsTemplate(name, content string) messageTemplate {
	return messageTemplate{text: texttemplate.Must(texttemplate.New(name).Parse(content))}
}

var messageTemplates = map[models.NotificationKind]messageTemplate{
	models.KindWelcomeUser: emailTemplate("welcome_user", "Welcome to Prescripto",
		`<p>Hi {{.name}},</p>
<p>Your account has been created. You can now browse doctors and book appointments at <a href="{{.appUrl}}">{{.appUrl}}</a>.</p>`),

	models.KindWelcomeDoctor: emailTemplate("welcome_doctor", "Your Prescripto doctor account",
		`<p>Dear Dr. {{.name}},</p>
<p>An administrator has registered you as a {{.speciality}} on Prescripto.</p>
<p>Sign in to the doctor panel with <b>{{.email}}</b> and the password shared with you by the administrator. Please change it after your first login.</p>`),

	models.KindAppointmentBooked: emailTemplate("appointment_booked", "Appointment booked",
		`<p>Hi {{.patientName}},</p>
<p>Your appointment with Dr. {{.doctorName}} ({{.speciality}}) is booked for <b>{{.slotDate}}</b> at <b>{{.slotTime}}</b>.</p>
<p>Consultation fee: {{.amount}}</p>`),

	models.KindAppointmentSMS: smsTemplate("appointment_booked_sms",
		`Prescripto: appointment with Dr. {{.doctorName}} on {{.slotDate}} at {{.slotTime}} is confirmed.`),

	models.KindPaymentReceipt: emailTemplate("payment_receipt", "Payment received",
		`<p>Hi {{.patientName}},</p>
<p>We received your payment of {{.currency}} {{.amount}} for the appointment with Dr. {{.doctorName}} on {{.slotDate}} at {{.slotTime}}.</p>
<p>Your receipt is attached.</p>`),

	models.KindPasswordOTP: emailTemplate("password_otp", "Password reset code",
		`<p>Use the code below to reset your password. It expires in {{.expiresIn}}.</p>
<p style="font-size:24px;letter-spacing:4px"><b>{{.otp}}</b></p>
<p>If you did not request a reset you can ignore this email.</p>`),

	models.KindPasswordChanged: emailTemplate("password_changed", "Your password was changed",
		`<p>Hi {{.name}},</p>
<p>The password of your Prescripto account was changed. If this was not you, reset your password immediately.</p>`),

	models.KindContactInquiry: emailTemplate("contact_inquiry", "New contact form message",
		`<p><b>From:</b> {{.name}} &lt;{{.email}}&gt;</p>
<p><b>Subject:</b> {{.subject}}</p>
<p>{{.message}}</p>`),
}

// renderMessage returns the subject and body for a notification kind.
func renderMessage(kind models.NotificationKind, data map[string]string) (string, string, error) {
	tmpl, ok := messageTemplates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", kind)
	}

	var buf bytes.Buffer
	if tmpl.text != nil {
		if err := tmpl.text.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("render %s: %w", kind, err)
		}
		return "", buf.String(), nil
	}
	if err := tmpl.html.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	subject := tmpl.subject
	if kind == models.KindContactInquiry && data["subject"] != "" {
		subject = "Contact: " + data["subject"]
	}
	return subject, buf.String(), nil
}

func channelFor(kind models.NotificationKind) models.Channel {
	if kind == models.KindAppointmentSMS {
		return models.ChannelSMS
	}
	return models.ChannelEmail
}
