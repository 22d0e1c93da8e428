package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/sqlgate/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/sqlgate/internal/adapter/driven/tokenfile"
	"github.com/ericfisherdev/sqlgate/internal/application"
	"github.com/ericfisherdev/sqlgate/internal/domain/model"
)

var (
	flagOwner string

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue, list and revoke bearer tokens",
	}

	tokenIssueCmd = &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for an owner",
		Long: `
Issues a new bearer token. The token is printed once and also written to
<SQLGATE_TOKEN_DIR>/<owner>.token; only a salted hash is stored.

Usage:
  $ sqlgate token issue --owner alice
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTokenService(cmd.Context(), func(ctx context.Context, svc *application.TokenService) error {
				issued, err := svc.Issue(ctx, flagOwner)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Token issued for %s (id %d)\n\n", issued.Owner, issued.ID)
				fmt.Fprintf(out, "    %s\n\n", issued.Token)
				fmt.Fprintln(out, "Store it now; it cannot be shown again.")
				return nil
			})
		},
	}

	tokenListCmd = &cobra.Command{
		Use:   "list",
		Short: "List active tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withTokenService(cmd.Context(), func(ctx context.Context, svc *application.TokenService) error {
				infos, err := svc.List(ctx)
				if err != nil {
					return err
				}
				return printTokens(cmd.OutOrStdout(), infos)
			})
		},
	}

	tokenRevokeCmd = &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke a token by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid token id %q", args[0])
			}
			return withTokenService(cmd.Context(), func(ctx context.Context, svc *application.TokenService) error {
				ok, err := svc.Revoke(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no token with id %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token %d revoked\n", id)
				return nil
			})
		},
	}
)

func init() {
	tokenIssueCmd.Flags().StringVar(&flagOwner, "owner", "", "identity the token is issued to (required)")
	_ = tokenIssueCmd.MarkFlagRequired("owner")

	tokenCmd.AddCommand(tokenIssueCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
}

// withTokenService opens the credential database for the duration of fn.
func withTokenService(ctx context.Context, fn func(context.Context, *application.TokenService) error) error {
	cfg, logger, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openControlDB(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	svc := application.NewTokenService(
		sqliteadapter.NewCredentialRepo(db),
		tokenfile.New(cfg.TokenDir),
		cfg.KDFIterations,
		logger,
	)
	return fn(ctx, svc)
}

// printTokens renders credentials as a borderless table.
func printTokens(out io.Writer, infos []model.CredentialInfo) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(out, "No tokens issued")
		return err
	}

	cnf := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}

	symbols := tw.NewSymbolCustom("sqlgate").
		WithRow(" ").
		WithColumn(" ").
		WithTopLeft("").
		WithTopMid(" ").
		WithTopRight(" ").
		WithMidLeft(" ").
		WithCenter(" ").
		WithMidRight(" ").
		WithBottomLeft(" ").
		WithBottomMid(" ").
		WithBottomRight(" ")

	rd := tw.Rendition{Symbols: symbols}
	rd.Settings.Lines.ShowHeaderLine = tw.Off

	table := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewBlueprint(rd)),
		tablewriter.WithConfig(cnf),
	)
	table.Header("ID", "Owner", "Prefix", "Issued")

	rows := make([][]any, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []any{
			info.ID,
			info.Owner,
			application.TokenScheme + info.Prefix + "...",
			info.IssuedAt.Local().Format(time.DateTime),
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
