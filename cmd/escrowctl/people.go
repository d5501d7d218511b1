package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/domain/file"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/services/users"
	"github.com/flexcrow/escrowctl/internal/cli"
)

func cmdUser(ctx context.Context, e *env, args []string) error {
	return dispatch(ctx, e, "user", args, map[string]handler{
		"list":     userList,
		"show":     userShow,
		"create":   userCreate,
		"update":   userUpdate,
		"delete":   userDelete,
		"password": userPassword,
	})
}

func statusLabel(status int) string {
	if status == user.StatusDisabled {
		return "disabled"
	}
	return "active"
}

func userList(ctx context.Context, e *env, args []string) error {
	fs, opts := pageFlags(e, "user list")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	page, err := e.app.Users.List(ctx, *opts)
	if err != nil {
		return err
	}
	t := &cli.Table{Header: []string{"ID", "USERNAME", "EMAIL", "ROLE", "STATUS", "BALANCE"}}
	for _, u := range page.Items {
		t.Append(u.ID, u.Username, u.Email, string(u.Type), statusLabel(u.Status), money(u.Balance))
	}
	return e.printer.Print(page, t)
}

func userShow(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("user show"), args, "user show <id|me>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	var u user.User
	if id == "me" {
		u, err = e.app.Users.Me(ctx)
	} else {
		u, err = e.app.Users.Get(ctx, id)
	}
	if err != nil {
		return err
	}
	return e.printer.Print(u, cli.Fields(
		"ID", u.ID,
		"Username", u.Username,
		"Name", u.FullName(),
		"Email", u.Email,
		"Phone", u.Phone,
		"Role", string(u.Type),
		"Status", statusLabel(u.Status),
		"Balance", money(u.Balance),
	))
}

func userCreate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("user create")
	var form users.AccountForm
	fs.StringVar(&form.Username, "username", "", "username, 5 to 50 characters")
	fs.StringVar(&form.Email, "email", "", "email address")
	fs.StringVar(&form.Password, "password", "", "initial password")
	fs.StringVar(&form.FirstName, "first-name", "", "first name")
	fs.StringVar(&form.LastName, "last-name", "", "last name")
	fs.StringVar(&form.Phone, "phone", "", "phone number")
	role := fs.String("role", "USER", "ADMIN or USER")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	form.Role = user.Role(strings.ToUpper(*role))
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	id, err := e.app.Users.Create(ctx, form)
	if err != nil {
		return err
	}
	return e.created("account", id)
}

// userUpdate edits a profile. Members edit themselves; admins may name any
// account and may also change its status and role.
func userUpdate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("user update")
	username := fs.String("username", "", "new username")
	email := fs.String("email", "", "new email")
	first := fs.String("first-name", "", "first name")
	last := fs.String("last-name", "", "last name")
	phone := fs.String("phone", "", "phone number")
	addressID := fs.String("address", "", "default address ID")
	avatar := fs.String("avatar", "", "profile image to upload")
	status := fs.String("status", "", "active or disabled (admin)")
	role := fs.String("role", "", "ADMIN or USER (admin)")
	pos, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(pos) > 1 {
		return usageError("user update [flags] [id]")
	}
	var id string
	if len(pos) == 1 {
		id = pos[0]
	}

	ctx, s, err := e.session(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		id = s.UserID
	}
	form := users.ProfileForm{
		Username:  optional(fs, "username", username),
		Email:     optional(fs, "email", email),
		FirstName: optional(fs, "first-name", first),
		LastName:  optional(fs, "last-name", last),
		Phone:     optional(fs, "phone", phone),
		AddressID: optional(fs, "address", addressID),
	}
	if *avatar != "" {
		f, err := os.Open(*avatar)
		if err != nil {
			return err
		}
		defer f.Close()
		form.Avatar, form.AvatarName, form.AvatarType = f, filepath.Base(*avatar), contentType(*avatar)
	}
	if form != (users.ProfileForm{}) {
		if err := e.app.Users.UpdateProfile(ctx, id, form); err != nil {
			return err
		}
	}

	if *status != "" {
		code := user.StatusActive
		switch *status {
		case "active", "1":
		case "disabled", "2":
			code = user.StatusDisabled
		default:
			return fmt.Errorf("unknown status %q (active, disabled)", *status)
		}
		if err := e.app.Users.SetStatus(ctx, id, code); err != nil {
			return err
		}
	}
	if *role != "" {
		if err := e.app.Users.SetRole(ctx, id, user.Role(strings.ToUpper(*role))); err != nil {
			return err
		}
	}
	e.ok("profile updated")
	return nil
}

func userDelete(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("user delete"), args, "user delete <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Users.Delete(ctx, id); err != nil {
		return err
	}
	e.ok("account %s deleted", id)
	return nil
}

func userPassword(ctx context.Context, e *env, args []string) error {
	fs := e.flags("user password")
	var form users.PasswordForm
	fs.StringVar(&form.Current, "current", "", "current password (prompted when omitted)")
	fs.StringVar(&form.New, "new", "", "new password, at least 6 characters (prompted when omitted)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	prompts := []struct {
		dst    *string
		prompt string
	}{
		{&form.Current, "Current password: "},
		{&form.New, "New password: "},
	}
	for _, p := range prompts {
		if *p.dst != "" {
			continue
		}
		v, err := cli.ReadSecret(e.stderr, e.stdin, p.prompt)
		if err != nil {
			return err
		}
		*p.dst = v
	}
	form.Confirm = form.New
	if optional(fs, "new", &form.New) == nil {
		c, err := cli.ReadSecret(e.stderr, e.stdin, "Confirm new password: ")
		if err != nil {
			return err
		}
		form.Confirm = c
	}

	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Users.ChangePassword(ctx, "", form); err != nil {
		return err
	}
	e.ok("password changed")
	return nil
}

func cmdFile(ctx context.Context, e *env, args []string) error {
	return dispatch(ctx, e, "file", args, map[string]handler{
		"list":   fileList,
		"show":   fileShow,
		"upload": fileUpload,
		"delete": fileDelete,
	})
}

func fileList(ctx context.Context, e *env, args []string) error {
	fs, opts := pageFlags(e, "file list")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	page, err := e.app.API.ListFiles(ctx, *opts)
	if err != nil {
		return err
	}
	t := &cli.Table{Header: []string{"ID", "NAME", "KIND", "SIZE", "URL"}}
	for _, f := range page.Items {
		t.Append(f.ID, f.OriginalName, fileKind(f), fmt.Sprint(f.Size), f.CloudURL)
	}
	return e.printer.Print(page, t)
}

func fileKind(f file.File) string {
	switch {
	case f.IsImage():
		return "image"
	case f.IsVideo():
		return "video"
	}
	return "other"
}

func fileShow(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("file show"), args, "file show <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	f, err := e.app.Hydrator.File(ctx, id)
	if err != nil {
		return err
	}
	return e.printer.Print(f, cli.Fields(
		"ID", f.ID,
		"Name", f.OriginalName,
		"Type", f.FileType,
		"Kind", fileKind(f),
		"Size", fmt.Sprint(f.Size),
		"URL", f.CloudURL,
	))
}

func fileUpload(ctx context.Context, e *env, args []string) error {
	path, err := oneArg(e.flags("file upload"), args, "file upload <path>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	spin := cli.NewSpinner("uploading " + filepath.Base(path))
	spin.Start()
	id, err := e.upload(ctx, path)
	spin.Stop()
	if err != nil {
		return err
	}
	return e.created("file", id)
}

func fileDelete(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("file delete"), args, "file delete <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.API.DeleteFile(ctx, id); err != nil {
		return err
	}
	e.ok("file %s deleted", id)
	return nil
}
