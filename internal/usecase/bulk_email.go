package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/attarstore/internal/domain"
)

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

type BulkEmailRequest struct {
	Subject        string `json:"subject"`
	HTMLBody       string `json:"html_content"`
	SendToAll      bool   `json:"send_to_all"`
	RecipientEmail string `json:"recipient_email,omitempty"`
}

type BulkEmailResult struct {
	RecipientsCount int `json:"recipients_count"`
}

// BulkEmailUC validates a bulk send and hands it to the backend in a single
// request. Recipient resolution and delivery are the backend's job.
type BulkEmailUC struct {
	Emails domain.EmailAPI
}

func (uc *BulkEmailUC) Validate(req BulkEmailRequest) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.Subject) == "" {
		fields["subject"] = "required"
	}
	if strings.TrimSpace(req.HTMLBody) == "" {
		fields["html_content"] = "required"
	}
	if !req.SendToAll {
		to := strings.TrimSpace(req.RecipientEmail)
		switch {
		case to == "":
			fields["recipient_email"] = "required"
		case !emailRe.MatchString(to):
			fields["recipient_email"] = "invalid address"
		}
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func (uc *BulkEmailUC) Send(ctx context.Context, req BulkEmailRequest) (BulkEmailResult, error) {
	if err := uc.Validate(req); err != nil {
		return BulkEmailResult{}, err
	}
	target := domain.EmailTarget{All: req.SendToAll}
	if !req.SendToAll {
		target.RecipientEmail = strings.TrimSpace(req.RecipientEmail)
	}
	n, err := uc.Emails.SendBulkEmail(ctx, req.Subject, req.HTMLBody, target)
	if err != nil {
		log.Error().Err(err).Bool("send_to_all", req.SendToAll).Msg("bulk email")
		return BulkEmailResult{}, fmt.Errorf("send bulk email: %w", asNetworkError(err))
	}
	log.Info().Int("recipients", n).Bool("send_to_all", req.SendToAll).Msg("bulk email sent")
	return BulkEmailResult{RecipientsCount: n}, nil
}

// RecipientCount is informational; Send does not depend on it.
func (uc *BulkEmailUC) RecipientCount(ctx context.Context) (int, error) {
	n, err := uc.Emails.RecipientCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("recipient count: %w", asNetworkError(err))
	}
	return n, nil
}
