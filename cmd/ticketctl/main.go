package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticketmanager/internal/auth"
	"github.com/spec-kit/ticketmanager/internal/bootstrap"
	"github.com/spec-kit/ticketmanager/internal/config"
	"github.com/spec-kit/ticketmanager/internal/domain"
	"github.com/spec-kit/ticketmanager/internal/observability"
	"github.com/spec-kit/ticketmanager/internal/persistence"
	"github.com/spec-kit/ticketmanager/internal/service"
	"github.com/spec-kit/ticketmanager/internal/worker"
)

var (
	migrationsDir string

	tokenUser string
	tokenRole string

	userEmail string
	userName  string
	userRole  string

	teamName        string
	teamDescription string
	teamLeader      string
	teamMembers     []string
)

var rootCmd = &cobra.Command{
	Use:           "ticketctl",
	Short:         "Administrative tasks for the ticket manager",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.close()

		applied, err := persistence.RunMigrations(cmd.Context(), env.components.Postgres.PoolHandle(), migrationsDir, env.logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair-statuses",
	Short: "Reset unassigned tickets that are not OPEN back to OPEN",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.close()

		fixed, err := env.components.Tickets.FixUnassignedTicketStatuses(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fixed %d ticket(s)\n", fixed)
		return nil
	},
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Sign a bearer token for a user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(tokenUser) == "" {
			return errors.New("--user is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		token, expiresAt, err := tokens.GenerateToken(tokenUser, domain.Role(strings.ToUpper(tokenRole)))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Register a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.close()

		user, err := env.components.Directory.CreateUser(cmd.Context(), service.UserInput{
			Email: userEmail,
			Name:  userName,
			Role:  domain.Role(userRole),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Email, user.Role)
		return nil
	},
}

var createTeamCmd = &cobra.Command{
	Use:   "create-team",
	Short: "Register a team",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.close()

		in := service.TeamInput{Name: teamName, Description: teamDescription, MemberIDs: teamMembers}
		if teamLeader != "" {
			in.LeaderID = &teamLeader
		}
		team, err := env.components.Directory.CreateTeam(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", team.ID, team.Name)
		return nil
	},
}

var addMemberCmd = &cobra.Command{
	Use:   "add-member <team-id> <user-id>",
	Short: "Add a user to a team",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.close()

		return env.components.Directory.AddMember(cmd.Context(), args[0], args[1])
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deliver queued email notifications until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.close()
		if env.components.Redis == nil {
			return errors.New("worker needs EVENTS_BACKEND=redis; the in-memory queue is drained by the api process")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		w := worker.NewNotificationWorker(env.components.Queue, env.components.Emails, env.logger)
		w.Start(ctx)
		w.Wait()
		return nil
	},
}

type environment struct {
	components *bootstrap.Components
	logger     *zap.Logger
}

func (e *environment) close() {
	e.components.Close()
	_ = e.logger.Sync()
}

// setup loads config and wires the components without touching the schema
// or seeding users.
func setup(ctx context.Context, needPostgres bool) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if needPostgres && cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required for this command")
	}
	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return nil, err
	}
	components, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Options{SkipMigrations: true, SkipAdminBootstrap: true})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &environment{components: components, logger: logger}, nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", persistence.DefaultMigrationsDir, "directory holding *.sql migrations")

	issueTokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to embed in the token")
	issueTokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleUser), "role claim (informational)")

	createUserCmd.Flags().StringVar(&userEmail, "email", "", "email address")
	createUserCmd.Flags().StringVar(&userName, "name", "", "display name")
	createUserCmd.Flags().StringVar(&userRole, "role", string(domain.RoleUser), "ADMIN or USER")
	_ = createUserCmd.MarkFlagRequired("email")

	createTeamCmd.Flags().StringVar(&teamName, "name", "", "team name")
	createTeamCmd.Flags().StringVar(&teamDescription, "description", "", "team description")
	createTeamCmd.Flags().StringVar(&teamLeader, "leader", "", "leader user id")
	createTeamCmd.Flags().StringSliceVar(&teamMembers, "member", nil, "member user id (repeatable)")
	_ = createTeamCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(issueTokenCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(createTeamCmd)
	rootCmd.AddCommand(addMemberCmd)
	rootCmd.AddCommand(workerCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
