package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/attarstore/internal/domain"
)

func TestBulkEmail_Validate(t *testing.T) {
	uc := &BulkEmailUC{}
	tests := []struct {
		name   string
		req    BulkEmailRequest
		fields []string
	}{
		{"ok all", BulkEmailRequest{Subject: "Sale", HTMLBody: "<p>hi</p>", SendToAll: true}, nil},
		{"ok single", BulkEmailRequest{Subject: "Sale", HTMLBody: "<p>hi</p>", RecipientEmail: "a@b.co"}, nil},
		{"empty subject", BulkEmailRequest{Subject: "  ", HTMLBody: "<p>hi</p>", SendToAll: true}, []string{"subject"}},
		{"empty body", BulkEmailRequest{Subject: "Sale", SendToAll: true}, []string{"html_content"}},
		{"missing recipient", BulkEmailRequest{Subject: "Sale", HTMLBody: "x"}, []string{"recipient_email"}},
		{"bad recipient", BulkEmailRequest{Subject: "Sale", HTMLBody: "x", RecipientEmail: "not-an-email"}, []string{"recipient_email"}},
		{"everything", BulkEmailRequest{}, []string{"subject", "html_content", "recipient_email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := uc.Validate(tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, domain.ErrValidation)
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
			assert.Len(t, verr.Fields, len(tt.fields))
		})
	}
}

func TestBulkEmail_ValidationBeforeNetwork(t *testing.T) {
	emails := &fakeEmails{count: 10}
	uc := &BulkEmailUC{Emails: emails}
	_, err := uc.Send(context.Background(), BulkEmailRequest{HTMLBody: "<p>x</p>", SendToAll: true})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, emails.calls)
}

func TestBulkEmail_Send(t *testing.T) {
	emails := &fakeEmails{count: 42}
	uc := &BulkEmailUC{Emails: emails}

	res, err := uc.Send(context.Background(), BulkEmailRequest{Subject: "Eid", HTMLBody: "<b>x</b>", SendToAll: true, RecipientEmail: "ignored@x.io"})
	require.NoError(t, err)
	assert.Equal(t, 42, res.RecipientsCount)
	assert.Equal(t, 1, emails.calls)
	assert.Equal(t, domain.EmailTarget{All: true}, emails.target)

	_, err = uc.Send(context.Background(), BulkEmailRequest{Subject: "Eid", HTMLBody: "<b>x</b>", RecipientEmail: " one@x.io "})
	require.NoError(t, err)
	assert.Equal(t, domain.EmailTarget{RecipientEmail: "one@x.io"}, emails.target)
}

func TestBulkEmail_BackendFailure(t *testing.T) {
	emails := &fakeEmails{err: &domain.NetworkError{Op: "POST /admin/emails/send-bulk", StatusCode: 500, Message: "smtp down"}}
	uc := &BulkEmailUC{Emails: emails}
	_, err := uc.Send(context.Background(), BulkEmailRequest{Subject: "s", HTMLBody: "b", SendToAll: true})
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Equal(t, 1, emails.calls, "no retry")

	emails.err = errBackend
	_, err = uc.RecipientCount(context.Background())
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestBulkEmail_RecipientCount(t *testing.T) {
	uc := &BulkEmailUC{Emails: &fakeEmails{count: 7}}
	n, err := uc.RecipientCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
