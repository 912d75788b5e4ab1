package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v2"

	"ping_client/internal/domain"
	"ping_client/internal/service"
)

func passwordFlags(name, confirm string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: name, Usage: "password", EnvVars: []string{"PING_PASSWORD"}, Required: true},
		&cli.StringFlag{Name: confirm, Usage: "password again; defaults to --" + name},
	}
}

// confirmation falls back to the password itself so scripted logins need
// not repeat it.
func confirmation(c *cli.Context, name, confirm string) string {
	if c.IsSet(confirm) {
		return c.String(confirm)
	}
	return c.String(name)
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "sign in and store the session credential",
		ArgsUsage: "<username>",
		Flags:     passwordFlags("password", "verify-password"),
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			username, err := requireArg(c, 0, "username")
			if err != nil {
				return err
			}
			resp, err := rt.auth.Login(c.Context, service.LoginInput{
				Username:       username,
				Password:       c.String("password"),
				VerifyPassword: confirmation(c, "password", "verify-password"),
			})
			if err != nil {
				return err
			}
			return rt.print(resp, func(w io.Writer) {
				fmt.Fprintf(w, "Signed in as %s\n", resp.Username)
			})
		},
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:      "register",
		Usage:     "create an account",
		ArgsUsage: "<username>",
		Flags: append(passwordFlags("password", "confirm-password"),
			&cli.StringFlag{Name: "phone", Usage: "phone number used for password recovery", Required: true},
		),
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			username, err := requireArg(c, 0, "username")
			if err != nil {
				return err
			}
			resp, err := rt.auth.Register(c.Context, service.RegisterInput{
				Username:        username,
				Phone:           c.String("phone"),
				Password:        c.String("password"),
				ConfirmPassword: confirmation(c, "password", "confirm-password"),
			})
			if err != nil {
				return err
			}
			return rt.print(resp, func(w io.Writer) {
				fmt.Fprintf(w, "Registered %s, you can now log in\n", resp.Username)
			})
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "forget the stored credential",
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			if err := rt.auth.Logout(c.Context); err != nil {
				return err
			}
			rt.say("Signed out")
			return nil
		},
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "show the signed-in user",
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			u, err := rt.signedIn(c.Context)
			if err != nil {
				return err
			}
			return rt.print(u, func(w io.Writer) {
				fmt.Fprintf(w, "%s (id %d)", u.Username, u.ID)
				if len(u.Roles) > 0 {
					fmt.Fprintf(w, " [%s]", strings.Join(u.Roles, ", "))
				}
				fmt.Fprintln(w)
			})
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check the stored credential with the server",
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			if err := rt.auth.VerifySession(c.Context); err != nil {
				return err
			}
			rt.say("Token is valid")
			return nil
		},
	}
}

func forgotPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "forgot-password",
		Usage:     "send a verification code to a phone number",
		ArgsUsage: "<phone>",
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			phone, err := requireArg(c, 0, "phone")
			if err != nil {
				return err
			}
			resp, err := rt.auth.ForgotPassword(c.Context, phone)
			if err != nil {
				return err
			}
			return rt.print(resp, func(w io.Writer) {
				fmt.Fprintf(w, "Code sent, continue with: ping verify-code --phone %s <code>\n", phone)
			})
		},
	}
}

func verifyCodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify-code",
		Usage:     "verify the code sent by forgot-password",
		ArgsUsage: "<code>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "phone", Required: true},
		},
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			code, err := requireArg(c, 0, "code")
			if err != nil {
				return err
			}
			if len(code) != service.CodeLength {
				return fmt.Errorf("%w: the code has %d digits", domain.ErrInvalidInput, service.CodeLength)
			}
			entry := rt.auth.NewCodeEntry(c.String("phone"))
			for i, d := range code {
				if err := entry.Enter(c.Context, i, string(d)); err != nil {
					return err
				}
			}
			rt.say("Code verified, continue with: ping reset-password --phone %s", c.String("phone"))
			return nil
		},
	}
}

func resetPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset-password",
		Usage: "set a new password after the code was verified",
		Flags: append(passwordFlags("password", "verify-password"),
			&cli.StringFlag{Name: "phone", Required: true},
		),
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			resp, err := rt.auth.ResetPassword(c.Context, c.String("phone"),
				c.String("password"), confirmation(c, "password", "verify-password"))
			if err != nil {
				return err
			}
			return rt.print(resp, func(w io.Writer) {
				fmt.Fprintf(w, "Password reset for %s\n", resp.Username)
			})
		},
	}
}
