package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"csesa-backend/internal/app"
	"csesa-backend/internal/feature/identity"
)

func newCreatePresidentCommand(configPath *string) *cobra.Command {
	var in identity.PresidentInput

	cmd := &cobra.Command{
		Use:   "create-president",
		Short: "Create a president account with a password login",
		Long: "Create a president (superuser) account. The password is read from the terminal, " +
			"or from the first line of stdin when stdin is not a terminal. " +
			"Creating a president closes the first-sign-in bootstrap.",
		Example: `  csesa-admin create-president --email head@iiitdmj.ac.in --first-name Asha --last-name Rao
  echo "$PASSWORD" | csesa-admin create-president --email head@iiitdmj.ac.in`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			in.Password = pw
			return withApp(*configPath, func(ctx context.Context, a *app.App) error {
				return createPresident(ctx, a, in, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "President email (required)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func createPresident(ctx context.Context, a *app.App, in identity.PresidentInput, out io.Writer) error {
	u, err := a.Identity.CreatePresident(ctx, in)
	if err != nil {
		return fmt.Errorf("create president: %w", err)
	}
	a.Log.Info("president created", zap.String("user_id", u.ID), zap.String("email", u.Email))
	_, _ = fmt.Fprintf(out, "created president %s (%s)\n", u.Email, u.ID)
	return nil
}

// readPassword 终端下不回显并要求输入两次；管道输入只读第一行
func readPassword(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		_, _ = fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		_, _ = fmt.Fprint(prompt, "Repeat password: ")
		second, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password on stdin")
	}
	return pw, nil
}
