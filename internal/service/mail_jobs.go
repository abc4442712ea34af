package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openlearn/lms-api/pkg/jobs"
	"github.com/openlearn/lms-api/pkg/mailer"
)

// Mail job types handled by the background queue.
const (
	MailJobInvite        = "course_invite"
	MailJobPasswordReset = "password_reset"
)

// InviteMailPayload carries everything needed to render an invite email.
type InviteMailPayload struct {
	ToName      string
	ToEmail     string
	CourseTitle string
	InviterName string
	Token       string
}

// PasswordResetMailPayload carries the reset email parameters.
type PasswordResetMailPayload struct {
	ToName  string
	ToEmail string
	Token   string
}

// MailJobHandler returns the queue handler that delivers outbound email.
func MailJobHandler(m mailer.Mailer, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		switch job.Type {
		case MailJobInvite:
			payload, ok := job.Payload.(InviteMailPayload)
			if !ok {
				logger.Error("invalid invite mail payload", zap.String("job_id", job.ID))
				return nil
			}
			msg := mailer.Message{
				ToName:  payload.ToName,
				ToEmail: payload.ToEmail,
				Subject: fmt.Sprintf("You have been invited to %s", payload.CourseTitle),
				TextContent: fmt.Sprintf(
					"Hi %s,\n\n%s invited you to join the course %q.\n\nUse this invite token when enrolling: %s\n",
					payload.ToName, payload.InviterName, payload.CourseTitle, payload.Token),
			}
			return m.Send(ctx, msg)
		case MailJobPasswordReset:
			payload, ok := job.Payload.(PasswordResetMailPayload)
			if !ok {
				logger.Error("invalid reset mail payload", zap.String("job_id", job.ID))
				return nil
			}
			msg := mailer.Message{
				ToName:  payload.ToName,
				ToEmail: payload.ToEmail,
				Subject: "Reset your password",
				TextContent: fmt.Sprintf(
					"Hi %s,\n\nA password reset was requested for your account.\nUse this token to set a new password: %s\n\nIf you did not request this, ignore this email.\n",
					payload.ToName, payload.Token),
			}
			return m.Send(ctx, msg)
		default:
			logger.Warn("unknown mail job type", zap.String("type", job.Type))
			return nil
		}
	}
}
