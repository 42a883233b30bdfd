package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/juanse07/nexa-sub001/internal/app"
	"github.com/juanse07/nexa-sub001/internal/dto"
	"github.com/juanse07/nexa-sub001/pkg/jwt"
	"github.com/juanse07/nexa-sub001/pkg/redis"
)

var (
	tokenProvider  string
	tokenSubject   string
	tokenName      string
	tokenEmail     string
	tokenRole      string
	tokenManagerID string

	revokeJTI string
	revokeTTL time.Duration

	subStatus         string
	subTier           string
	subCustomerID     string
	subSubscriptionID string
	subPeriodEnd      string
	subCancelAtEnd    bool
	subManagerSeats   int
)

// ── token ──

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for tooling and tests",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if tokenRole == jwt.RoleManager && tokenManagerID == "" {
			return errors.New("--manager-id is required for manager tokens")
		}

		token, err := jwt.NewManager(&cfg.Auth).GenerateAccessToken(jwt.TokenSubject{
			Provider:  tokenProvider,
			Subject:   tokenSubject,
			Name:      tokenName,
			Email:     tokenEmail,
			Role:      tokenRole,
			ManagerID: tokenManagerID,
		})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

// ── revoke ──

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke a token id until it would have expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Redis.Addr == "" {
			return errors.New("revocation needs redis.addr")
		}
		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()

		ttl := revokeTTL
		if ttl <= 0 {
			ttl = cfg.Auth.AccessTokenTTL
		}
		if err := rdb.BlacklistToken(rootCtx, revokeJTI, ttl); err != nil {
			return err
		}
		fmt.Printf("revoked %s for %s\n", revokeJTI, ttl)
		return nil
	},
}

// ── repair-stats ──

var repairStatsCmd = &cobra.Command{
	Use:   "repair-stats <event-id>",
	Short: "Recompute an event's role ledger from its roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			out, err := a.Services.Event.RepairStats(ctx, args[0], "")
			if err != nil {
				return err
			}
			return printJSON(out)
		})
	},
}

// ── sync-seats ──

var syncSeatsCmd = &cobra.Command{
	Use:   "sync-seats [org-id]",
	Short: "Reconcile staff seats for one organization, or retry every queued one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if len(args) == 0 {
				n, err := a.Services.Organization.RetrySeatSyncs(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("retried %d organizations\n", n)
				return nil
			}
			out, err := a.Services.Organization.SyncStaffSeats(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(out)
		})
	},
}

// ── sweep-clock-out ──

var sweepCmd = &cobra.Command{
	Use:   "sweep-clock-out",
	Short: "Run one automatic clock-out sweep now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			closed, err := a.Services.Attendance.AutoClockOut(ctx, time.Now())
			if err != nil {
				return err
			}
			return printJSON(dto.SweepResponse{Closed: closed})
		})
	},
}

// ── org-subscription ──

var orgSubscriptionCmd = &cobra.Command{
	Use:   "org-subscription <org-id>",
	Short: "Apply a billing provider subscription update to an organization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &dto.UpdateSubscriptionRequest{
			Status:            subStatus,
			Tier:              subTier,
			CancelAtPeriodEnd: subCancelAtEnd,
		}
		if subCustomerID != "" {
			req.StripeCustomerID = &subCustomerID
		}
		if subSubscriptionID != "" {
			req.StripeSubscriptionID = &subSubscriptionID
		}
		if subPeriodEnd != "" {
			end, err := time.Parse(time.RFC3339, subPeriodEnd)
			if err != nil {
				return fmt.Errorf("--period-end: %w", err)
			}
			req.CurrentPeriodEnd = &end
		}
		if cmd.Flags().Changed("manager-seats") {
			req.ManagerSeatsIncluded = &subManagerSeats
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			org, err := a.Services.Organization.UpdateSubscription(ctx, args[0], req)
			if err != nil {
				return err
			}
			return printJSON(org)
		})
	},
}

// ── manager-subscription ──

var managerSubscriptionCmd = &cobra.Command{
	Use:   "manager-subscription <manager-id>",
	Short: "Apply an individual subscription update to a manager",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			m, err := a.Services.Manager.UpdateSubscription(ctx, args[0], &dto.UpdateManagerSubscriptionRequest{
				Tier:   subTier,
				Status: subStatus,
			})
			if err != nil {
				return err
			}
			return printJSON(m)
		})
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenProvider, "provider", "google", "identity provider")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "provider subject")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email")
	tokenCmd.Flags().StringVar(&tokenRole, "role", jwt.RoleStaff, "staff or manager")
	tokenCmd.Flags().StringVar(&tokenManagerID, "manager-id", "", "manager id (manager tokens)")
	_ = tokenCmd.MarkFlagRequired("subject")

	revokeCmd.Flags().StringVar(&revokeJTI, "jti", "", "token id to revoke")
	revokeCmd.Flags().DurationVar(&revokeTTL, "ttl", 0, "revocation lifetime (default: access token TTL)")
	_ = revokeCmd.MarkFlagRequired("jti")

	for _, c := range []*cobra.Command{orgSubscriptionCmd, managerSubscriptionCmd} {
		c.Flags().StringVar(&subStatus, "status", "active", "none, trialing, active, past_due, canceled or unpaid")
		c.Flags().StringVar(&subTier, "tier", "pro", "free or pro")
	}
	orgSubscriptionCmd.Flags().StringVar(&subCustomerID, "customer-id", "", "billing provider customer id")
	orgSubscriptionCmd.Flags().StringVar(&subSubscriptionID, "subscription-id", "", "billing provider subscription id")
	orgSubscriptionCmd.Flags().StringVar(&subPeriodEnd, "period-end", "", "current period end (RFC 3339)")
	orgSubscriptionCmd.Flags().BoolVar(&subCancelAtEnd, "cancel-at-period-end", false, "subscription cancels at period end")
	orgSubscriptionCmd.Flags().IntVar(&subManagerSeats, "manager-seats", 0, "manager seats included")

	rootCmd.AddCommand(
		tokenCmd,
		revokeCmd,
		repairStatsCmd,
		syncSeatsCmd,
		sweepCmd,
		orgSubscriptionCmd,
		managerSubscriptionCmd,
	)
}
