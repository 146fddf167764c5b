package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phenrril/attarstore/internal/app"
	"github.com/phenrril/attarstore/internal/usecase"
)

var (
	emailSubject  string
	emailBody     string
	emailBodyFile string
	emailTo       string
)

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Bulk e-mail tools",
}

var emailRecipientsCmd = &cobra.Command{
	Use:   "recipients",
	Short: "Show how many verified recipients the backend has",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := loadEmailApp()
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())
		n, err := application.BulkEmail.RecipientCount(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d recipient(s)\n", n)
		return nil
	},
}

var emailSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an HTML e-mail to every user, or to --to only",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := emailBody
		if emailBodyFile != "" {
			b, err := os.ReadFile(emailBodyFile)
			if err != nil {
				return err
			}
			body = string(b)
		}
		application, err := loadEmailApp()
		if err != nil {
			return err
		}
		defer application.Close(cmd.Context())
		res, err := application.BulkEmail.Send(cmd.Context(), usecase.BulkEmailRequest{
			Subject:        emailSubject,
			HTMLBody:       body,
			SendToAll:      emailTo == "",
			RecipientEmail: emailTo,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Email sent successfully to %d recipient(s)\n", res.RecipientsCount)
		return nil
	},
}

func loadEmailApp() (*app.App, error) {
	application, err := loadApp()
	if err != nil {
		return nil, err
	}
	if application.BulkEmail == nil {
		_ = application.Close(context.Background())
		return nil, app.ErrNoEmailBackend
	}
	return application, nil
}

func init() {
	emailSendCmd.Flags().StringVarP(&emailSubject, "subject", "s", "", "subject line")
	emailSendCmd.Flags().StringVar(&emailBody, "html", "", "HTML body")
	emailSendCmd.Flags().StringVar(&emailBodyFile, "html-file", "", "read the HTML body from a file")
	emailSendCmd.Flags().StringVar(&emailTo, "to", "", "single recipient; all users when empty")
	emailCmd.AddCommand(emailRecipientsCmd, emailSendCmd)
	rootCmd.AddCommand(emailCmd)
}
