package mail

import (
	"fmt"
	"html"
)

func PasswordReset(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		HTML: fmt.Sprintf(`<p>We received a request to reset your password.</p>`+
			`<p><a href="%s">Reset password</a></p>`+
			`<p>This link expires in one hour. If you did not ask for it, ignore this email.</p>`,
			html.EscapeString(link)),
		Text: "Reset your password: " + link,
	}
}

func OrganizationInvite(to, orgName, link string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("You're invited to join %s", orgName),
		HTML: fmt.Sprintf(`<p>You have been invited to join <strong>%s</strong>.</p><p><a href="%s">Accept invitation</a></p>`,
			html.EscapeString(orgName), html.EscapeString(link)),
		Text: fmt.Sprintf("You have been invited to join %s: %s", orgName, link),
	}
}

func ProjectInvite(to, projectName, link string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("You're invited to the %s project", projectName),
		HTML: fmt.Sprintf(`<p>You have been invited to collaborate on <strong>%s</strong>.</p><p><a href="%s">Open invitation</a></p>`,
			html.EscapeString(projectName), html.EscapeString(link)),
		Text: fmt.Sprintf("You have been invited to the %s project: %s", projectName, link),
	}
}
