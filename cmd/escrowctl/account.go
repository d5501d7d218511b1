package main

import (
	"context"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/services/auth"
	"github.com/flexcrow/escrowctl/internal/cli"
)

func cmdLogin(ctx context.Context, e *env, args []string) error {
	fs := e.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (prompted when omitted)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return usageError("login --email <email> [--password <password>]")
	}
	if *password == "" {
		p, err := cli.ReadSecret(e.stderr, e.stdin, "Password: ")
		if err != nil {
			return err
		}
		*password = p
	}

	s, err := e.app.Auth.Login(ctx, auth.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	e.cfg.Auth.Token = s.Token
	if err := e.cfg.SaveProfile(e.cfgPath); err != nil {
		return err
	}
	e.ok("logged in as %s (%s area)", s.Email, auth.AreaFor(s))
	return nil
}

func cmdLogout(ctx context.Context, e *env, args []string) error {
	if _, err := parse(e.flags("logout"), args); err != nil {
		return err
	}
	e.app.Auth.Logout()
	e.cfg.Auth.Token = ""
	if err := e.cfg.SaveProfile(e.cfgPath); err != nil {
		return err
	}
	e.ok("logged out")
	return nil
}

func cmdSignup(ctx context.Context, e *env, args []string) error {
	fs := e.flags("signup")
	var form auth.SignupForm
	fs.StringVar(&form.Username, "username", "", "username, 5 to 50 characters")
	fs.StringVar(&form.Email, "email", "", "email address")
	fs.StringVar(&form.Password, "password", "", "password, at least 6 characters (prompted when omitted)")
	fs.StringVar(&form.FirstName, "first-name", "", "first name")
	fs.StringVar(&form.LastName, "last-name", "", "last name")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if form.Password == "" {
		p, err := cli.ReadSecret(e.stderr, e.stdin, "Password: ")
		if err != nil {
			return err
		}
		c, err := cli.ReadSecret(e.stderr, e.stdin, "Confirm password: ")
		if err != nil {
			return err
		}
		form.Password, form.ConfirmPassword = p, c
	} else {
		form.ConfirmPassword = form.Password
	}
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)

	if err := e.app.Auth.Signup(ctx, form); err != nil {
		return err
	}
	e.ok("account %s created; log in with escrowctl login --email %s", form.Username, form.Email)
	return nil
}

func cmdWhoami(ctx context.Context, e *env, args []string) error {
	if _, err := parse(e.flags("whoami"), args); err != nil {
		return err
	}
	ctx, s, err := e.session(ctx)
	if err != nil {
		return err
	}
	me, err := e.app.Users.Me(ctx)
	if err != nil {
		return err
	}
	expires := "never"
	if !s.ExpiresAt.IsZero() {
		expires = s.ExpiresAt.Local().Format("2006-01-02 15:04")
	}
	return e.printer.Print(me, cli.Fields(
		"ID", me.ID,
		"Username", me.Username,
		"Name", me.FullName(),
		"Email", me.Email,
		"Role", string(me.Type),
		"Balance", money(me.Balance),
		"Session expires", expires,
	))
}
