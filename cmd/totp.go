package cmd

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"os"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/spf13/cobra"
)

const totpIssuer = "socdash"

type totpEnrollment struct {
	Account string `json:"account"`
	Secret  string `json:"secret"`
	URL     string `json:"url"`
	QRFile  string `json:"qrFile,omitempty"`
}

func newTOTPCmd() *cobra.Command {
	var (
		account string
		qrFile  string
	)

	cmd := &cobra.Command{
		Use:   "totp",
		Short: "Generate a TOTP secret for login second factor",
		Long: `Generate a new TOTP secret for the dashboard account. Put the secret in
auth.totp_secret (or the auth_totp_secret key of the secret store) and scan the
otpauth URL or QR code with an authenticator app.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := totp.Generate(totp.GenerateOpts{
				Issuer:      totpIssuer,
				AccountName: account,
				Digits:      otp.DigitsSix,
				Algorithm:   otp.AlgorithmSHA1,
			})
			if err != nil {
				return fmt.Errorf("failed to generate TOTP secret: %w", err)
			}

			enrollment := totpEnrollment{Account: account, Secret: key.Secret(), URL: key.URL()}
			if qrFile != "" {
				if err := writeQRCode(key, qrFile); err != nil {
					return err
				}
				enrollment.QRFile = qrFile
			}

			if outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), enrollment)
			}
			renderTOTPEnrollment(cmd.OutOrStdout(), enrollment)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "admin", "Account name shown in the authenticator app")
	cmd.Flags().StringVar(&qrFile, "qr", "", "Write the enrollment QR code to this PNG file")

	return cmd
}

func writeQRCode(key *otp.Key, path string) error {
	img, err := key.Image(256, 256)
	if err != nil {
		return fmt.Errorf("failed to render QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode QR code: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	return nil
}

func renderTOTPEnrollment(w io.Writer, e totpEnrollment) {
	fmt.Fprintln(w, headerColor.Sprint("TOTP ENROLLMENT"))
	fmt.Fprintf(w, "Account: %s\n", e.Account)
	fmt.Fprintf(w, "Secret:  %s\n", successColor.Sprint(e.Secret))
	fmt.Fprintf(w, "URL:     %s\n", e.URL)
	if e.QRFile != "" {
		fmt.Fprintf(w, "QR code: %s\n", e.QRFile)
	}
	if !quiet {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warningColor.Sprint("Set auth.totp_secret to the secret above and keep it out of version control."))
	}
}
