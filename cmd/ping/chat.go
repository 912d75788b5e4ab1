package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"ping_client/internal/api"
	"ping_client/internal/domain"
	"ping_client/internal/view"
)

func loadedChat(c *cli.Context, rt *runtime) (*view.ChatView, *domain.SessionUser, error) {
	me, err := rt.signedIn(c.Context)
	if err != nil {
		return nil, nil, err
	}
	v := view.NewChat(rt.deps())
	if err := v.Load(c.Context); err != nil {
		v.Close()
		return nil, nil, err
	}
	return v, me, nil
}

func printMessages(rt *runtime, msgs []domain.Message) error {
	return rt.print(msgs, func(w io.Writer) {
		for _, m := range msgs {
			fmt.Fprintf(w, "[%d] %s: %s\n", m.ID, m.Sender.Username, m.Text)
		}
	})
}

func printCreated(rt *runtime, conv api.CreatedConversation) error {
	return rt.print(conv, func(w io.Writer) {
		name := conv.Name
		if name == "" {
			name = conv.NameGroup
		}
		var members []string
		for _, m := range conv.Members {
			members = append(members, m.Username)
		}
		fmt.Fprintf(w, "Conversation %d %q with %s\n", conv.ID, name, strings.Join(members, ", "))
	})
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "conversations and messages",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "your conversations",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "delete", Usage: "delete this conversation first"},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					v, me, err := loadedChat(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					if id := c.Int64("delete"); id > 0 {
						if err := v.Delete(c.Context, id); err != nil {
							return err
						}
					}
					convs := v.Conversations()
					return rt.print(convs, func(w io.Writer) {
						table(w, "ID\tTYPE\tNAME\tMEMBERS", func(tw *tabwriter.Writer) {
							for _, cv := range convs {
								fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", cv.ID, cv.Type, cv.DisplayName(me.Username), len(cv.Members))
							}
						})
					})
				},
			},
			{
				Name:      "show",
				Usage:     "messages of a conversation",
				ArgsUsage: "<conversation-id>",
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					id, err := idArg(c, 0, "conversation-id")
					if err != nil {
						return err
					}
					v, _, err := loadedChat(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					if err := v.Select(c.Context, id); err != nil {
						return err
					}
					return printMessages(rt, v.Messages())
				},
			},
			{
				Name:      "send",
				Usage:     "send a message",
				ArgsUsage: "<conversation-id> <text>",
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					id, err := idArg(c, 0, "conversation-id")
					if err != nil {
						return err
					}
					text, err := requireArg(c, 1, "text")
					if err != nil {
						return err
					}
					v, _, err := loadedChat(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					if err := v.Select(c.Context, id); err != nil {
						return err
					}
					if err := v.Send(c.Context, strings.Join(append([]string{text}, c.Args().Slice()[2:]...), " ")); err != nil {
						return err
					}
					return printMessages(rt, v.Messages())
				},
			},
			{
				Name:      "private",
				Usage:     "start a private conversation",
				ArgsUsage: "<username>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "conversation name", Required: true},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					other, err := requireArg(c, 0, "username")
					if err != nil {
						return err
					}
					v, _, err := loadedChat(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					conv, err := v.CreatePrivate(c.Context, other, c.String("name"))
					if err != nil {
						return err
					}
					return printCreated(rt, conv)
				},
			},
			{
				Name:      "group",
				Usage:     "start a group conversation with you and the given users",
				ArgsUsage: "<username>...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "group name", Required: true},
				},
				Action: func(c *cli.Context) error {
					rt := runtimeOf(c)
					v, _, err := loadedChat(c, rt)
					if err != nil {
						return err
					}
					defer v.Close()
					conv, err := v.CreateGroup(c.Context, c.String("name"), c.Args().Slice())
					if err != nil {
						return err
					}
					return printCreated(rt, conv)
				},
			},
		},
	}
}
