package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/gateway"
	"ping_client/internal/view"
)

func requireArg(c *cli.Context, i int, name string) (string, error) {
	v := c.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("%w: missing <%s>", domain.ErrInvalidInput, name)
	}
	return v, nil
}

func idArg(c *cli.Context, i int, name string) (int64, error) {
	raw, err := requireArg(c, i, name)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: <%s> must be a positive number, got %q", domain.ErrInvalidInput, name, raw)
	}
	return id, nil
}

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	tw.Flush()
}

// openFile prepares a multipart file part from a local path.
func openFile(path string) (gateway.File, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return gateway.File{}, nil, err
	}
	name := filepath.Base(path)
	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return gateway.File{Field: "file", Name: name, ContentType: ct, Content: f}, func() { f.Close() }, nil
}

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "show posts from you and your friends",
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			if _, err := rt.signedIn(c.Context); err != nil {
				return err
			}
			v := view.NewFeed(rt.deps())
			defer v.Close()
			if err := v.Load(c.Context); err != nil {
				return err
			}
			if err := v.Err(); err != nil {
				rt.log.Warn().Err(err).Msg("some like counts are missing")
			}
			items := v.Items()
			return rt.print(items, func(w io.Writer) {
				table(w, "ID\tAUTHOR\tLIKES\tLIKED\tDESCRIPTION\tMEDIA", func(tw *tabwriter.Writer) {
					for _, it := range items {
						fmt.Fprintf(tw, "%d\t%s\t%d\t%t\t%s\t%s\n", it.ID, it.Username, it.Likes, it.Liked,
							it.Description, rt.api.MediaURL(it.MediaURL))
					}
				})
			})
		},
	}
}

func likeCommand() *cli.Command {
	return &cli.Command{
		Name:      "like",
		Usage:     "like a feed post, or unlike it when already liked",
		ArgsUsage: "<post-id>",
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			id, err := idArg(c, 0, "post-id")
			if err != nil {
				return err
			}
			if _, err := rt.signedIn(c.Context); err != nil {
				return err
			}
			v := view.NewFeed(rt.deps())
			defer v.Close()
			if err := v.Load(c.Context); err != nil {
				return err
			}
			if err := v.ToggleLike(c.Context, id); err != nil {
				return err
			}
			for _, it := range v.Items() {
				if it.ID == id {
					return rt.print(it, func(w io.Writer) {
						fmt.Fprintf(w, "Post %d: liked=%t, %d likes\n", it.ID, it.Liked, it.Likes)
					})
				}
			}
			return nil
		},
	}
}

func commentsView(c *cli.Context, rt *runtime) (*view.CommentsView, error) {
	id, err := idArg(c, 0, "post-id")
	if err != nil {
		return nil, err
	}
	if _, err := rt.signedIn(c.Context); err != nil {
		return nil, err
	}
	v := view.NewComments(rt.deps(), domain.FeedPost{ID: id})
	if err := v.Load(c.Context); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func printComments(rt *runtime, list []domain.Comment) error {
	return rt.print(list, func(w io.Writer) {
		table(w, "ID\tUSER\tTEXT", func(tw *tabwriter.Writer) {
			for _, cm := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", cm.ID, cm.Username, cm.Text)
			}
		})
	})
}

func commentsCommand() *cli.Command {
	return &cli.Command{
		Name:      "comments",
		Usage:     "list the comments of a post",
		ArgsUsage: "<post-id>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "delete", Usage: "delete this comment first"},
		},
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			v, err := commentsView(c, rt)
			if err != nil {
				return err
			}
			defer v.Close()
			if id := c.Int64("delete"); id > 0 {
				if err := v.Delete(c.Context, id); err != nil {
					return err
				}
			}
			return printComments(rt, v.Comments())
		},
	}
}

func commentCommand() *cli.Command {
	return &cli.Command{
		Name:      "comment",
		Usage:     "comment on a post",
		ArgsUsage: "<post-id> <text>",
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			text, err := requireArg(c, 1, "text")
			if err != nil {
				return err
			}
			v, err := commentsView(c, rt)
			if err != nil {
				return err
			}
			defer v.Close()
			if err := v.Add(c.Context, text); err != nil {
				return err
			}
			return printComments(rt, v.Comments())
		},
	}
}

func postCommand() *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "publish a post with an image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "image to upload", Required: true},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
			&cli.StringFlag{Name: "type", Value: "IMAGE"},
		},
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			if _, err := rt.signedIn(c.Context); err != nil {
				return err
			}
			file, closeFile, err := openFile(c.String("file"))
			if err != nil {
				return err
			}
			defer closeFile()

			v := view.NewFeed(rt.deps())
			defer v.Close()
			post, err := v.CreatePost(c.Context, api.CreatePostRequest{
				Description: c.String("description"),
				Type:        c.String("type"),
				File:        file,
			})
			if err != nil {
				return err
			}
			return rt.print(post, func(w io.Writer) {
				fmt.Fprintf(w, "Posted %d: %s\n", post.ID, rt.api.MediaURL(post.MediaURL))
			})
		},
	}
}

func printUsers(rt *runtime, users []domain.User) error {
	return rt.print(users, func(w io.Writer) {
		table(w, "ID\tUSERNAME\tNAME\tPHONE\tROLES", func(tw *tabwriter.Writer) {
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s %s\t%s\t%v\n", u.ID, u.Username, u.FirstName, u.LastName, u.Phone, u.Roles)
			}
		})
	})
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "find users by name",
		ArgsUsage: "<keyword>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "suggested", Usage: "list suggested friends instead"},
		},
		Action: func(c *cli.Context) error {
			rt := runtimeOf(c)
			if _, err := rt.signedIn(c.Context); err != nil {
				return err
			}
			if c.Bool("suggested") {
				v := view.NewFeed(rt.deps())
				defer v.Close()
				users, err := v.SuggestedFriends(c.Context)
				if err != nil {
					return err
				}
				return printUsers(rt, users)
			}
			v := view.NewSearch(rt.deps())
			defer v.Close()
			if err := v.Search(c.Context, c.Args().First()); err != nil {
				return err
			}
			return printUsers(rt, v.Results())
		},
	}
}

func printFriendships(rt *runtime, self string, list []domain.FriendshipRequest) error {
	return rt.print(list, func(w io.Writer) {
		table(w, "ID\tFROM\tTO\tFRIEND", func(tw *tabwriter.Writer) {
			for _, f := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", f.ID, f.SenderUsername, f.ReceiverUsername, f.Counterpart(self))
			}
		})
	})
}

func friendsCommand() *cli.Command {
	respond := func(answer domain.FriendshipResponse) cli.ActionFunc {
		return func(c *cli.Context) error {
			rt := runtimeOf(c)
			id, err := idArg(c, 0, "request-id")
			if err != nil {
				return err
			}
			if _, err := rt.signedIn(c.Context); err != nil {
				return err
			}
			v := view.NewFriendRequests(rt.deps())
			defer v.Close()
			if err := v.Respond(c.Context, id, answer); err != nil {
				return err
			}
			rt.say("Friend request %d: %s", id, answer)
			return nil
		}
	}

	return &cli.Command{
		Name:  "friends",
		Usage: "manage friendships",
		Subcommands: []*cli.Command{
			{
				Name:  "pending",
				Usage: "friend requests waiting for your answer",
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					me, err := rt.signedIn(c.Context)
					if err != nil {
						return err
					}
					v := view.NewFriendRequests(rt.deps())
					defer v.Close()
					if err := v.Load(c.Context); err != nil {
						return err
					}
					return printFriendships(rt, me.Username, v.Pending())
				},
			},
			{
				Name:  "accepted",
				Usage: "your friends",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "remove", Usage: "end this friendship first"},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					me, err := rt.signedIn(c.Context)
					if err != nil {
						return err
					}
					v := view.NewProfile(rt.deps())
					defer v.Close()
					if err := v.Load(c.Context); err != nil {
						return err
					}
					if id := c.Int64("remove"); id > 0 {
						if err := v.RemoveFriend(c.Context, id); err != nil {
							return err
						}
					}
					return printFriendships(rt, me.Username, v.Friends())
				},
			},
			{
				Name:      "send",
				Usage:     "ask someone to be your friend",
				ArgsUsage: "<username>",
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					receiver, err := requireArg(c, 0, "username")
					if err != nil {
						return err
					}
					if _, err := rt.signedIn(c.Context); err != nil {
						return err
					}
					v := view.NewFriendRequests(rt.deps())
					defer v.Close()
					reply, err := v.Send(c.Context, receiver)
					if err != nil {
						return err
					}
					if reply.ID == 0 {
						return errors.New(reply.Message)
					}
					return rt.print(reply, func(w io.Writer) {
						fmt.Fprintf(w, "Friend request %d sent to %s\n", reply.ID, receiver)
					})
				},
			},
			{Name: "accept", Usage: "accept a friend request", ArgsUsage: "<request-id>", Action: respond(domain.FriendshipAccepted)},
			{Name: "reject", Usage: "reject a friend request", ArgsUsage: "<request-id>", Action: respond(domain.FriendshipRejected)},
		},
	}
}

func notificationsCommand() *cli.Command {
	act := func(name string, do func(v *view.NotificationsView, c *cli.Context, id int64) error) *cli.Command {
		return &cli.Command{
			Name:      name,
			ArgsUsage: "<notification-id>",
			Action: func(c *cli.Context) error {
				rt := runtimeOf(c)
				id, err := idArg(c, 0, "notification-id")
				if err != nil {
					return err
				}
				if _, err := rt.signedIn(c.Context); err != nil {
					return err
				}
				v := view.NewNotifications(rt.deps())
				defer v.Close()
				if err := do(v, c, id); err != nil {
					return err
				}
				rt.say("Notification %d: %s", id, name)
				return nil
			},
		}
	}

	read := act("read", func(v *view.NotificationsView, c *cli.Context, id int64) error { return v.MarkRead(c.Context, id) })
	read.Usage = "mark a notification as read"
	del := act("delete", func(v *view.NotificationsView, c *cli.Context, id int64) error { return v.Delete(c.Context, id) })
	del.Usage = "delete a notification"

	return &cli.Command{
		Name:  "notifications",
		Usage: "unread notifications",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list unread notifications",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "include read notifications"},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					me, err := rt.signedIn(c.Context)
					if err != nil {
						return err
					}
					var items []domain.Notification
					if c.Bool("all") {
						items, err = rt.api.AllNotifications(c.Context, me.Username)
						if err != nil {
							return err
						}
					} else {
						v := view.NewNotifications(rt.deps())
						defer v.Close()
						if err := v.Load(c.Context); err != nil {
							return err
						}
						items = v.Items()
					}
					return rt.print(items, func(w io.Writer) {
						table(w, "ID\tFROM\tTYPE\tREAD\tTEXT", func(tw *tabwriter.Writer) {
							for _, n := range items {
								fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", n.ID, n.Username, n.Type, n.Read, n.Text)
							}
						})
					})
				},
			},
			read,
			del,
		},
	}
}

func profileCommand() *cli.Command {
	loaded := func(c *cli.Context, rt *runtime) (*view.ProfileView, error) {
		if _, err := rt.signedIn(c.Context); err != nil {
			return nil, err
		}
		v := view.NewProfile(rt.deps())
		if err := v.Load(c.Context); err != nil {
			v.Close()
			return nil, err
		}
		return v, nil
	}
	show := func(rt *runtime, v *view.ProfileView) error {
		u, _ := rt.session.User()
		posts := v.Posts()
		out := struct {
			User  domain.SessionUser `json:"user"`
			Posts []domain.Post      `json:"posts"`
		}{u, posts}
		return rt.print(out, func(w io.Writer) {
			fmt.Fprintf(w, "%s  %s %s\n", u.Username, u.FirstName, u.LastName)
			if u.Bio != "" {
				fmt.Fprintln(w, u.Bio)
			}
			if u.Phone != "" {
				fmt.Fprintf(w, "phone: %s\n", u.Phone)
			}
			if u.ProfilePicture != "" {
				fmt.Fprintf(w, "picture: %s\n", rt.api.MediaURL(u.ProfilePicture))
			}
			fmt.Fprintf(w, "%d posts, %d friends\n", len(posts), len(v.Friends()))
		})
	}

	return &cli.Command{
		Name:  "profile",
		Usage: "your profile",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "show your profile",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "delete-post", Usage: "delete this post first"},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					v, err := loaded(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					if id := c.Int64("delete-post"); id > 0 {
						if err := v.DeletePost(c.Context, id); err != nil {
							return err
						}
					}
					return show(rt, v)
				},
			},
			{
				Name:  "update",
				Usage: "change profile fields; empty flags keep the current value",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "first-name"},
					&cli.StringFlag{Name: "last-name"},
					&cli.StringFlag{Name: "phone"},
					&cli.StringFlag{Name: "bio"},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					v, err := loaded(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					if err := v.UpdateInfo(c.Context, api.UpdateProfileRequest{
						FirstName: c.String("first-name"),
						LastName:  c.String("last-name"),
						Phone:     c.String("phone"),
						Bio:       c.String("bio"),
					}); err != nil {
						return err
					}
					return show(rt, v)
				},
			},
			{
				Name:      "upload-picture",
				Usage:     "replace your profile picture",
				ArgsUsage: "<image>",
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					path, err := requireArg(c, 0, "image")
					if err != nil {
						return err
					}
					v, err := loaded(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					file, closeFile, err := openFile(path)
					if err != nil {
						return err
					}
					defer closeFile()
					if err := v.UploadPicture(c.Context, file); err != nil {
						return err
					}
					return show(rt, v)
				},
			},
			{
				Name:  "delete-picture",
				Usage: "remove your profile picture",
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					v, err := loaded(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					if err := v.DeletePicture(c.Context); err != nil {
						return err
					}
					return show(rt, v)
				},
			},
		},
	}
}
