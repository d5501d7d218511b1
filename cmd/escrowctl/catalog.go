package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/address"
	"github.com/flexcrow/escrowctl/internal/app/domain/product"
	"github.com/flexcrow/escrowctl/internal/app/services/products"
	"github.com/flexcrow/escrowctl/internal/cli"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func contentType(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// openMedia opens local files for upload. The returned func closes them.
func openMedia(paths []string) ([]products.Media, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}
	media := make([]products.Media, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		files = append(files, f)
		media = append(media, products.Media{Name: filepath.Base(p), ContentType: contentType(p), Body: f})
	}
	return media, closeAll, nil
}

func cmdProduct(ctx context.Context, e *env, args []string) error {
	return dispatch(ctx, e, "product", args, map[string]handler{
		"list":   productList,
		"show":   productShow,
		"create": productSave(false),
		"update": productSave(true),
		"remove": productRemove,
		"delete": productDelete,
	})
}

func productList(ctx context.Context, e *env, args []string) error {
	fs, opts := pageFlags(e, "product list")
	all := fs.Bool("all", false, "list every seller's products (admin)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	page, err := e.app.Products.List(ctx, *all, *opts)
	if err != nil {
		return err
	}
	t := &cli.Table{Header: []string{"ID", "NAME", "TYPE", "PRICE", "STATUS"}}
	for _, p := range page.Items {
		t.Append(p.ID, p.Name, p.Type.String(), money(p.Price), activeLabel(p.Status))
	}
	return e.printer.Print(page, t)
}

func activeLabel(status int) string {
	if status == product.StatusRemoved {
		return "removed"
	}
	return "active"
}

func productShow(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("product show"), args, "product show <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	p, err := e.app.Products.Get(ctx, id)
	if err != nil {
		return err
	}
	return e.printer.Print(p, cli.Fields(
		"ID", p.ID,
		"Name", p.Name,
		"Type", p.Type.String(),
		"Price", money(p.Price),
		"Status", activeLabel(p.Status),
		"Images", strings.Join(p.ImageIDs, ", "),
		"Video", p.VideoID,
		"Description", p.Description,
	))
}

// productSave builds create and update. Update starts from the stored
// product so omitted flags keep their value.
func productSave(update bool) handler {
	name := "product create"
	if update {
		name = "product update"
	}
	return func(ctx context.Context, e *env, args []string) error {
		fs := e.flags(name)
		var form products.Form
		var images listFlag
		kind := fs.String("type", "physical", "physical or digital")
		fs.StringVar(&form.Name, "name", "", "product name")
		fs.StringVar(&form.Price, "price", "", "unit price")
		fs.StringVar(&form.Description, "description", "", "description, up to 1000 characters")
		fs.StringVar(&form.Owner, "owner", "", "owner user ID (admin only)")
		fs.Var(&images, "image", "image file to upload (repeatable)")
		video := fs.String("video", "", "video file to upload")
		replace := fs.Bool("replace-images", false, "drop stored images before adding new ones")

		pos, err := parse(fs, args)
		if err != nil {
			return err
		}
		var id string
		if update {
			if len(pos) != 1 {
				return usageError(name + " [flags] <id>")
			}
			id = pos[0]
		} else if len(pos) != 0 {
			return usageError(name + " --name <name> --price <price> [--type physical|digital] [--image path]...")
		}

		ctx, _, err = e.session(ctx)
		if err != nil {
			return err
		}
		if update {
			current, err := e.app.Products.Get(ctx, id)
			if err != nil {
				return err
			}
			overlay(fs, map[string]func(){
				"name":        func() { form.Name = current.Name },
				"price":       func() { form.Price = money(current.Price) },
				"description": func() { form.Description = current.Description },
				"type":        func() { *kind = current.Type.String() },
			})
			form.ImageIDs = current.ImageIDs
			if *replace {
				form.ImageIDs = []string{}
			}
		}
		switch *kind {
		case "physical":
			form.Type = product.TypePhysical
		case "digital":
			form.Type = product.TypeDigital
		default:
			return fmt.Errorf("unknown type %q (physical, digital)", *kind)
		}

		media, closeAll, err := openMedia(images)
		if err != nil {
			return err
		}
		defer closeAll()
		form.Images = media
		if *video != "" {
			v, closeVideo, err := openMedia([]string{*video})
			if err != nil {
				return err
			}
			defer closeVideo()
			form.Video = &v[0]
		}

		if update {
			if err := e.app.Products.Update(ctx, id, form); err != nil {
				return err
			}
			e.ok("product %s updated", id)
			return nil
		}
		id, err = e.app.Products.Create(ctx, form)
		if err != nil {
			return err
		}
		return e.created("product", id)
	}
}

// overlay runs keep for every flag that was not given on the command line.
func overlay(fs *flag.FlagSet, keep map[string]func()) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for name, fn := range keep {
		if !set[name] {
			fn()
		}
	}
}

func productRemove(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("product remove"), args, "product remove <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Products.Remove(ctx, id); err != nil {
		return err
	}
	e.ok("product %s removed from sale", id)
	return nil
}

func productDelete(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("product delete"), args, "product delete <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Products.Delete(ctx, id); err != nil {
		return err
	}
	e.ok("product %s deleted", id)
	return nil
}

func cmdAddress(ctx context.Context, e *env, args []string) error {
	return dispatch(ctx, e, "address", args, map[string]handler{
		"list":   addressList,
		"show":   addressShow,
		"create": addressSave(false),
		"update": addressSave(true),
		"remove": addressRemove,
		"delete": addressDelete,
	})
}

func addressList(ctx context.Context, e *env, args []string) error {
	fs, opts := pageFlags(e, "address list")
	all := fs.Bool("all", false, "list every member's addresses (admin)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	page, err := e.app.Addresses.List(ctx, *all, *opts)
	if err != nil {
		return err
	}
	t := &cli.Table{Header: []string{"ID", "NAME", "RECIPIENT", "CITY", "COUNTRY", "STATUS"}}
	for _, a := range page.Items {
		status := "active"
		if a.Status == address.StatusRemoved {
			status = "removed"
		}
		t.Append(a.ID, a.Name, a.FullName, a.Province, a.Country, status)
	}
	return e.printer.Print(page, t)
}

func addressShow(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("address show"), args, "address show <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	a, err := e.app.Addresses.Get(ctx, id)
	if err != nil {
		return err
	}
	t := cli.Fields("ID", a.ID, "Name", a.Name)
	for _, line := range a.Lines() {
		t.Append("", line)
	}
	return e.printer.Print(a, t)
}

func addressSave(update bool) handler {
	name := "address create"
	if update {
		name = "address update"
	}
	return func(ctx context.Context, e *env, args []string) error {
		fs := e.flags(name)
		var form api.AddressForm
		text := map[string]*string{
			"name":        &form.Name,
			"full-name":   &form.FullName,
			"phone":       &form.Phone,
			"address1":    &form.Address1,
			"address2":    &form.Address2,
			"subdistrict": &form.Subdistrict,
			"district":    &form.District,
			"province":    &form.Province,
			"country":     &form.Country,
			"postal-code": &form.PostalCode,
		}
		for flagName, dst := range text {
			fs.StringVar(dst, flagName, "", strings.ReplaceAll(flagName, "-", " "))
		}
		fs.StringVar(&form.UserID, "owner", "", "owner username (admin only)")

		pos, err := parse(fs, args)
		if err != nil {
			return err
		}
		var id string
		if update {
			if len(pos) != 1 {
				return usageError(name + " [flags] <id>")
			}
			id = pos[0]
		} else if len(pos) != 0 {
			return usageError(name + " --full-name <name> --phone <phone> --address1 <line> --district <d> --province <p> --country <c> --postal-code <code>")
		}

		ctx, _, err = e.session(ctx)
		if err != nil {
			return err
		}
		if update {
			current, err := e.app.Addresses.Get(ctx, id)
			if err != nil {
				return err
			}
			stored := map[string]string{
				"name": current.Name, "full-name": current.FullName, "phone": current.Phone,
				"address1": current.Address1, "address2": current.Address2, "subdistrict": current.Subdistrict,
				"district": current.District, "province": current.Province, "country": current.Country,
				"postal-code": current.PostalCode,
			}
			keep := map[string]func(){}
			for flagName, dst := range text {
				dst, v := dst, stored[flagName]
				keep[flagName] = func() { *dst = v }
			}
			overlay(fs, keep)
			form.Status, form.Type = current.Status, current.Type
			if err := e.app.Addresses.Update(ctx, id, form); err != nil {
				return err
			}
			e.ok("address %s updated", id)
			return nil
		}

		id, err = e.app.Addresses.Create(ctx, form)
		if err != nil {
			return err
		}
		return e.created("address", id)
	}
}

func addressRemove(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("address remove"), args, "address remove <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Addresses.Remove(ctx, id); err != nil {
		return err
	}
	e.ok("address %s removed", id)
	return nil
}

func addressDelete(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("address delete"), args, "address delete <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Addresses.Delete(ctx, id); err != nil {
		return err
	}
	e.ok("address %s deleted", id)
	return nil
}
