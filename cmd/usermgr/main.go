// Command usermgr manages operator accounts for the control panel.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Aidin1998/botcontrol/internal/audit"
	"github.com/Aidin1998/botcontrol/internal/config"
	"github.com/Aidin1998/botcontrol/internal/database"
	"github.com/Aidin1998/botcontrol/internal/identities"
	"github.com/Aidin1998/botcontrol/pkg/logger"
	"github.com/Aidin1998/botcontrol/pkg/models"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// userAdmin is the account surface the commands need
type userAdmin interface {
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetActive(ctx context.Context, username string, active bool) error
}

var (
	verbose bool
	timeout time.Duration

	zapLogger = zap.NewNop()
	recorder  *audit.Recorder

	// openAdmin connects to the user store; replaced in tests
	openAdmin = connectAdmin
)

var rootCmd = &cobra.Command{
	Use:           "usermgr",
	Short:         "Manage control panel operator accounts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && verbose {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: .env file not found, using environment variables")
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		l, err := logger.NewLogger(level, "console")
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		zapLogger = l
		recorder = audit.NewRecorder(zapLogger, audit.NewLogSink(zapLogger))
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <username> <password>",
	Short: "Create an active operator account",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List operator accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var enableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Re-enable a disabled account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetActive(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable an account so it can no longer log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetActive(cmd, args[0], false)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connectAdmin loads configuration and opens the users collection
func connectAdmin(ctx context.Context) (userAdmin, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	client, err := database.NewMongoClient(ctx, cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	store := identities.NewMongoStore(client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.UsersCollection))
	if err := store.EnsureIndexes(ctx); err != nil {
		zapLogger.Warn("Failed to create user indexes", zap.Error(err))
	}

	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zapLogger.Debug("Disconnect failed", zap.Error(err))
		}
	}
	return identities.NewService(zapLogger, store, cfg.JWT.Secret, 0), closeFn, nil
}

func withAdmin(cmd *cobra.Command, fn func(ctx context.Context, admin userAdmin) error) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	admin, closeFn, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, admin)
}

func runAdd(cmd *cobra.Command, args []string) error {
	return withAdmin(cmd, func(ctx context.Context, admin userAdmin) error {
		user, err := admin.CreateUser(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[0], err)
		}
		recorder.Record(ctx, audit.Event{
			Actor:  "usermgr",
			Action: audit.ActionUserCreated,
			Target: user.Username,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.Username, user.ID.Hex())
		return nil
	})
}

func runList(cmd *cobra.Command, args []string) error {
	return withAdmin(cmd, func(ctx context.Context, admin userAdmin) error {
		users, err := admin.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tACTIVE\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", u.ID.Hex(), u.Username, u.Active, u.CreatedAt.UTC().Format(time.RFC3339))
		}
		return w.Flush()
	})
}

func runSetActive(cmd *cobra.Command, username string, active bool) error {
	return withAdmin(cmd, func(ctx context.Context, admin userAdmin) error {
		if err := admin.SetActive(ctx, username, active); err != nil {
			return fmt.Errorf("update %s: %w", username, err)
		}
		recorder.Record(ctx, audit.Event{
			Actor:   "usermgr",
			Action:  audit.ActionUserActivation,
			Target:  username,
			Details: map[string]interface{}{"active": active},
		})
		state := "disabled"
		if active {
			state = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %s %s\n", username, state)
		return nil
	})
}
