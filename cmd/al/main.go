package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"alertline/internal/app"
	"alertline/internal/config"
	"alertline/internal/db"
	"alertline/internal/engine"
	"alertline/internal/repo"
	"alertline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "al",
	Short: "Alertline CLI",
	Long: `Alertline dispatches in-app notifications when business records change status.
Core concepts:
- Workspace: your .alertline directory holding the SQLite database; alertline.yml beside it configures roles and categories.
- Entity types: the watched record kinds (orders, tickets, vacation requests, quotations), each with a fixed status list.
- Rules: who gets told when a record reaches a status; recipients are concrete users, the record's creator or assignee, or every holder of a role.
- Notifications: the inbox entries produced by rules; mark them read, mute whole categories, or clear the read ones.
- Event log: diary of rule changes and status transitions, view with 'al log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ALERTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "acting user identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(entityTypesCmd())
	rootCmd.AddCommand(ruleCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(notificationCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(ticketCmd())
	rootCmd.AddCommand(vacationCmd())
	rootCmd.AddCommand(quotationCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var serviceID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default alertline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(serviceID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&serviceID, "service-id", "alertline", "service id")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return printJSON(e.Config)
			})
		},
	}
	return cmd
}

func entityTypesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entity-types",
		Short: "List watched entity types and their statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				types := e.Registry.Types()
				if viper.GetBool("json") {
					return printJSON(types)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Type", "Label", "Category", "Statuses"})
				for _, d := range types {
					var statuses []string
					for _, c := range d.Choices {
						statuses = append(statuses, c.Value)
					}
					tw.AppendRow(table.Row{d.Type, d.Label, d.Category, strings.Join(statuses, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func ruleCmd() *cobra.Command {
	rule := &cobra.Command{
		Use:   "rule",
		Short: "Manage notification rules",
		Long:  "Rules connect a status to people: when a watched record reaches the trigger status, everyone the rule names gets a notification. Creating, changing, and deleting rules requires the admin role.",
	}
	rule.AddCommand(ruleCreateCmd())
	rule.AddCommand(ruleListCmd())
	rule.AddCommand(ruleShowCmd())
	rule.AddCommand(ruleUpdateCmd())
	rule.AddCommand(ruleDeleteCmd())
	return rule
}

// parseRecipients turns "user:u1", "creator", "assignee", "role:hr" flags into
// recipient options.
func parseRecipients(specs []string) ([]engine.RecipientOptions, error) {
	var out []engine.RecipientOptions
	for _, spec := range specs {
		mode, arg, _ := strings.Cut(spec, ":")
		opt := engine.RecipientOptions{Mode: mode}
		switch mode {
		case "user":
			opt.UserID = arg
		case "creator", "assignee":
			opt.UserID = arg
		case "role":
			opt.RoleID = arg
		default:
			return nil, fmt.Errorf("unknown recipient %q; use user:<id>, creator, assignee, or role:<id>", spec)
		}
		out = append(out, opt)
	}
	return out, nil
}

func ruleCreateCmd() *cobra.Command {
	var entityType, trigger, name, template string
	var recipients []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := parseRecipients(recipients)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				rule, err := e.CreateRule(ctx, engine.RuleCreateOptions{
					EntityType:      entityType,
					TriggerStatus:   trigger,
					Name:            name,
					MessageTemplate: template,
					Recipients:      recs,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rule)
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "watched entity type")
	cmd.Flags().StringVar(&trigger, "status", "", "trigger status")
	cmd.Flags().StringVar(&name, "name", "", "rule name")
	cmd.Flags().StringVar(&template, "template", "", "message template with {object} {old_status} {new_status} {changed_by}")
	cmd.Flags().StringArrayVar(&recipients, "to", []string{}, "recipient (repeatable): user:<id>, creator, assignee, role:<id>")
	_ = cmd.MarkFlagRequired("entity-type")
	_ = cmd.MarkFlagRequired("status")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func ruleListCmd() *cobra.Command {
	var entityType, active string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				f := repo.RuleFilters{EntityType: entityType}
				switch active {
				case "true":
					v := true
					f.IsActive = &v
				case "false":
					v := false
					f.IsActive = &v
				}
				rules, err := e.Repo.ListRules(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rules)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Entity", "Trigger", "Active", "Recipients"})
				for _, r := range rules {
					var recs []string
					for _, rec := range r.Recipients {
						switch {
						case rec.UserID != nil:
							recs = append(recs, rec.Mode+":"+*rec.UserID)
						case rec.RoleID != nil:
							recs = append(recs, rec.Mode+":"+*rec.RoleID)
						default:
							recs = append(recs, rec.Mode)
						}
					}
					tw.AppendRow(table.Row{r.ID, r.Name, r.EntityType, r.TriggerStatus, r.IsActive, strings.Join(recs, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "filter by entity type")
	cmd.Flags().StringVar(&active, "active", "", "filter by active (true/false)")
	return cmd
}

func ruleShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				rule, err := e.Repo.GetRule(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(rule)
			})
		},
	}
	return cmd
}

func ruleUpdateCmd() *cobra.Command {
	var name, trigger, template, active string
	var recipients []string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.RuleUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("status") {
				opts.TriggerStatus = &trigger
			}
			if cmd.Flags().Changed("template") {
				opts.MessageTemplate = &template
			}
			switch active {
			case "true":
				v := true
				opts.IsActive = &v
			case "false":
				v := false
				opts.IsActive = &v
			}
			if cmd.Flags().Changed("to") {
				recs, err := parseRecipients(recipients)
				if err != nil {
					return err
				}
				opts.Recipients = &recs
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				rule, err := e.UpdateRule(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rule)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "rule name")
	cmd.Flags().StringVar(&trigger, "status", "", "trigger status")
	cmd.Flags().StringVar(&template, "template", "", "message template (empty clears)")
	cmd.Flags().StringVar(&active, "active", "", "active (true/false)")
	cmd.Flags().StringArrayVar(&recipients, "to", []string{}, "replacement recipient list (repeatable)")
	return cmd
}

func ruleDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.DeleteRule(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userGrantRoleCmd())
	user.AddCommand(userRevokeRoleCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var id, displayName string
	var roles []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				u, err := e.CreateUser(ctx, id, displayName, roles, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "user id")
	cmd.Flags().StringVar(&displayName, "name", "", "display name")
	cmd.Flags().StringArrayVar(&roles, "role", []string{}, "role id (repeatable)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func userListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				users, err := e.Repo.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Active", "Roles"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.DisplayName, u.IsActive, strings.Join(u.Roles, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func userGrantRoleCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "grant-role",
		Short: "Grant role to user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--user and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.GrantRole(ctx, target, role, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&target, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func userRevokeRoleCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "revoke-role",
		Short: "Revoke role from user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--user and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.RevokeRole(ctx, target, role, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&target, "user", "", "user id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyMintCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyMintCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				key, raw, err := e.MintAPIKey(ctx, userID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": key, "secret": raw})
				}
				fmt.Printf("API key %s for %s\nSecret (save it now): %s\n", key.ID, key.UserID, raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func notificationCmd() *cobra.Command {
	n := &cobra.Command{
		Use:   "notification",
		Short: "Your notification inbox",
		Long:  "Inbox operations act as the --actor-id user; nobody can read or mutate another user's notifications.",
	}
	n.AddCommand(notificationListCmd())
	n.AddCommand(notificationReadCmd())
	n.AddCommand(notificationUnreadCmd())
	n.AddCommand(notificationReadAllCmd())
	n.AddCommand(notificationUnreadCountCmd())
	n.AddCommand(notificationClearReadCmd())
	return n
}

func notificationListCmd() *cobra.Command {
	var read, category string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List own notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				f := repo.NotificationFilters{Category: category, Limit: limit}
				switch read {
				case "true":
					v := true
					f.IsRead = &v
				case "false":
					v := false
					f.IsRead = &v
				}
				items, err := e.Repo.ListNotifications(ctx, viper.GetString("actor-id"), f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Category", "Read", "Created"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Title, n.Category, n.IsRead, n.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&read, "read", "", "filter by read (true/false)")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func notificationReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark one notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				now := time.Now().UTC().Format(time.RFC3339)
				return e.Repo.MarkNotificationRead(ctx, viper.GetString("actor-id"), args[0], now)
			})
		},
	}
	return cmd
}

func notificationUnreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unread <id>",
		Short: "Mark one notification unread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Repo.MarkNotificationUnread(ctx, viper.GetString("actor-id"), args[0])
			})
		},
	}
	return cmd
}

func notificationReadAllCmd() *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   "read-all",
		Short: "Mark own notifications read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				now := time.Now().UTC().Format(time.RFC3339)
				n, err := e.Repo.MarkAllRead(ctx, viper.GetString("actor-id"), now, ids)
				if err != nil {
					return err
				}
				fmt.Printf("Marked %d read\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&ids, "id", []string{}, "restrict to notification id (repeatable)")
	return cmd
}

func notificationUnreadCountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unread-count",
		Short: "Count own unread notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				n, err := e.Repo.UnreadCount(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"unread": n})
				}
				fmt.Println(n)
				return nil
			})
		},
	}
	return cmd
}

func notificationClearReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-read",
		Short: "Delete own read notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				n, err := e.Repo.DeleteAllRead(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d\n", n)
				return nil
			})
		},
	}
	return cmd
}

func prefsCmd() *cobra.Command {
	p := &cobra.Command{Use: "prefs", Short: "Notification preferences"}
	p.AddCommand(prefsShowCmd())
	p.AddCommand(prefsSetCmd())
	return p
}

func prefsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show own muted categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.Repo.GetPreferences(ctx, viper.GetString("actor-id"))
				if err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						fmt.Println("no categories muted")
						return nil
					}
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func prefsSetCmd() *cobra.Command {
	var muted []string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace own muted categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				p, err := e.Repo.UpsertPreferences(ctx, viper.GetString("actor-id"), muted)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringArrayVar(&muted, "mute", []string{}, "category to mute (repeatable, empty list unmutes all)")
	return cmd
}

func orderCmd() *cobra.Command {
	o := &cobra.Command{Use: "order", Short: "Manage orders"}
	o.AddCommand(orderCreateCmd())
	o.AddCommand(orderSetStatusCmd())
	o.AddCommand(orderListCmd())
	return o
}

func orderCreateCmd() *cobra.Command {
	var number, assignedTo string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{
					Number:     number,
					AssignedTo: assignedTo,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "order number")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "assignee user id")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

func orderSetStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Set order status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				o, err := e.SetOrderStatus(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func orderListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListOrders(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func ticketCmd() *cobra.Command {
	t := &cobra.Command{Use: "ticket", Short: "Manage tickets"}
	t.AddCommand(ticketCreateCmd())
	t.AddCommand(ticketSetStatusCmd())
	t.AddCommand(ticketListCmd())
	return t
}

func ticketCreateCmd() *cobra.Command {
	var number, subject, handler string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.CreateTicket(ctx, engine.TicketCreateOptions{
					Number:  number,
					Subject: subject,
					Handler: handler,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "ticket number")
	cmd.Flags().StringVar(&subject, "subject", "", "subject")
	cmd.Flags().StringVar(&handler, "handler", "", "handler user id")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

func ticketSetStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Set ticket status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.SetTicketStatus(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func ticketListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListTickets(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func vacationCmd() *cobra.Command {
	v := &cobra.Command{Use: "vacation", Short: "Manage vacation requests"}
	v.AddCommand(vacationCreateCmd())
	v.AddCommand(vacationSetStatusCmd())
	return v
}

func vacationCreateCmd() *cobra.Command {
	var employee, approver, start, end string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vacation request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				v, err := e.CreateVacationRequest(ctx, engine.VacationRequestCreateOptions{
					EmployeeID: employee,
					Approver:   approver,
					StartDate:  start,
					EndDate:    end,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(v)
			})
		},
	}
	cmd.Flags().StringVar(&employee, "employee", "", "employee user id")
	cmd.Flags().StringVar(&approver, "approver", "", "approver user id")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("employee")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func vacationSetStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Set vacation request status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				v, err := e.SetVacationRequestStatus(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(v)
			})
		},
	}
	return cmd
}

func quotationCmd() *cobra.Command {
	q := &cobra.Command{Use: "quotation", Short: "Manage quotations"}
	q.AddCommand(quotationCreateCmd())
	q.AddCommand(quotationSetStatusCmd())
	return q
}

func quotationCreateCmd() *cobra.Command {
	var number string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a quotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				q, err := e.CreateQuotation(ctx, engine.QuotationCreateOptions{
					Number:  number,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(q)
			})
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "quotation number")
	_ = cmd.MarkFlagRequired("number")
	return cmd
}

func quotationSetStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Set quotation status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				q, err := e.SetQuotationStatus(ctx, args[0], args[1], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				e.Dispatcher.Wait()
				return printJSONOrTable(q)
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: rule changes, status transitions, and dispatched notifications.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var before int64
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				events, err := e.Repo.LatestEventsFrom(ctx, n, before, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&before, "before", 0, "only events with id below this value")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			e, conn, err := app.Bootstrap(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			authCfg := server.AuthConfig{
				JWTSecret:             os.Getenv("ALERTLINE_JWT_SECRET"),
				AllowLegacyUserHeader: e.Config.Auth.AllowUserHeader,
				Logger:                e.Log,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("ALERTLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Alertline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			e.Dispatcher.Wait()
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	e, conn, err := app.Bootstrap(ctx, workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
