package main

import (
	"github.com/urfave/cli/v2"

	"ping_client/internal/view"
)

func loadedAdmin(c *cli.Context, rt *runtime) (*view.AdminView, error) {
	if _, err := rt.signedIn(c.Context); err != nil {
		return nil, err
	}
	v := view.NewAdmin(rt.deps())
	if err := v.Load(c.Context); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// roleAction runs one admin call that takes a role and, optionally, a
// username, then reports it.
func roleAction(withUser bool, do func(c *cli.Context, v *view.AdminView, role, username string) error, done string) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt := runtimeOf(c)
		var username string
		roleIdx := 0
		if withUser {
			u, err := requireArg(c, 0, "username")
			if err != nil {
				return err
			}
			username, roleIdx = u, 1
		}
		role, err := requireArg(c, roleIdx, "role")
		if err != nil {
			return err
		}
		v, err := loadedAdmin(c, rt)
		if err != nil {
			return err
		}
		defer v.Close()
		if err := do(c, v, role, username); err != nil {
			return err
		}
		if username != "" {
			rt.say("%s %s for %s", done, role, username)
		} else {
			rt.say("%s %s", done, role)
		}
		return nil
	}
}

func adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "manage accounts and roles (admin role required)",
		Subcommands: []*cli.Command{
			{
				Name:  "users",
				Usage: "list users, optionally filtered by one field",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "last-name"},
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "phone"},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					v, err := loadedAdmin(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					for _, f := range []struct {
						flag string
						by   view.UserFilter
					}{
						{"last-name", view.FilterLastName},
						{"first-name", view.FilterFirstName},
						{"phone", view.FilterPhone},
					} {
						if c.IsSet(f.flag) {
							if err := v.Filter(c.Context, f.by, c.String(f.flag)); err != nil {
								return err
							}
							break
						}
					}
					return printUsers(rt, v.Users())
				},
			},
			{
				Name:      "create-role",
				ArgsUsage: "<role>",
				Action: roleAction(false, func(c *cli.Context, v *view.AdminView, role, _ string) error {
					return v.CreateRole(c.Context, role)
				}, "Created role"),
			},
			{
				Name:      "delete-role",
				ArgsUsage: "<role>",
				Action: roleAction(false, func(c *cli.Context, v *view.AdminView, role, _ string) error {
					return v.DeleteRole(c.Context, role)
				}, "Deleted role"),
			},
			{
				Name:      "assign-role",
				ArgsUsage: "<username> <role>",
				Action: roleAction(true, func(c *cli.Context, v *view.AdminView, role, username string) error {
					return v.AssignRole(c.Context, username, role)
				}, "Assigned"),
			},
			{
				Name:      "remove-role",
				ArgsUsage: "<username> <role>",
				Action: roleAction(true, func(c *cli.Context, v *view.AdminView, role, username string) error {
					return v.RemoveRole(c.Context, username, role)
				}, "Removed"),
			},
			{
				Name:      "delete-user",
				ArgsUsage: "<username>",
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					username, err := requireArg(c, 0, "username")
					if err != nil {
						return err
					}
					v, err := loadedAdmin(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					if err := v.DeleteUser(c.Context, username); err != nil {
						return err
					}
					rt.say("Deleted user %s", username)
					return nil
				},
			},
		},
	}
}
