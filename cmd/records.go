package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/rightsguard-cli/api/schemas"
	"github.com/xkilldash9x/rightsguard-cli/internal/config"
	"github.com/xkilldash9x/rightsguard-cli/internal/observability"
	"github.com/xkilldash9x/rightsguard-cli/internal/service"
	"github.com/xkilldash9x/rightsguard-cli/internal/validation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// recordsProvider opens the record store for the profile, asset and cases
// commands. Tests swap it for an in-memory fake.
type recordsProvider interface {
	// Create returns the store and a cleanup function that releases it.
	Create(ctx context.Context, cfg config.Interface) (schemas.Records, func(), error)
}

type defaultRecordsProvider struct{}

func (defaultRecordsProvider) Create(ctx context.Context, cfg config.Interface) (schemas.Records, func(), error) {
	s, cleanup, err := service.OpenStore(ctx, cfg.Database(), observability.GetLogger())
	if err != nil {
		return nil, nil, err
	}
	return s, cleanup, nil
}

var records recordsProvider = defaultRecordsProvider{}

// withRecords opens the store for the duration of fn.
func withRecords(cmd *cobra.Command, fn func(ctx context.Context, r schemas.Records) error) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	r, cleanup, err := records.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open the record store: %w", err)
	}
	defer cleanup()
	return fn(ctx, r)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newProfileCmd() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Shows or edits the filer profile used by every appeal",
	}

	profileCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Prints the active profile as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, func(ctx context.Context, r schemas.Records) error {
				p, err := r.GetProfile(ctx)
				if err != nil {
					return err
				}
				if p == nil {
					return errors.New(`no profile configured (hint: run "rightsguard profile set --name ...")`)
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	})

	var (
		name, phone, email, idNumber string
		idFiles                      []string
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Creates the profile or updates the given fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, func(ctx context.Context, r schemas.Records) error {
				current, err := r.GetProfile(ctx)
				if err != nil {
					return err
				}
				p := schemas.Profile{}
				if current != nil {
					p = *current
				}
				flags := cmd.Flags()
				if flags.Changed("name") {
					p.Name = name
				}
				if flags.Changed("phone") {
					p.Phone = phone
				}
				if flags.Changed("email") {
					p.Email = email
				}
				if flags.Changed("id-number") {
					p.IDCardNumber = idNumber
				}
				if flags.Changed("id-file") {
					p.IDCardFiles = idFiles
				}
				if err := validation.Struct(p); err != nil {
					return err
				}

				saved, err := r.SaveProfile(ctx, p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	setCmd.Flags().StringVar(&name, "name", "", "Full name of the filer")
	setCmd.Flags().StringVar(&phone, "phone", "", "Contact phone number")
	setCmd.Flags().StringVar(&email, "email", "", "Contact email")
	setCmd.Flags().StringVar(&idNumber, "id-number", "", "Identity card number")
	setCmd.Flags().StringArrayVar(&idFiles, "id-file", nil, "Identity card scan, relative to the files root (repeatable)")
	profileCmd.AddCommand(setCmd)

	return profileCmd
}

func newAssetCmd() *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Manages the IP assets an appeal can be filed for",
	}

	assetCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Prints every asset as JSON, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, func(ctx context.Context, r schemas.Records) error {
				assets, err := r.ListIPAssets(ctx)
				if err != nil {
					return err
				}
				if assets == nil {
					assets = []schemas.IPAsset{}
				}
				return printJSON(cmd.OutOrStdout(), assets)
			})
		},
	})

	a := schemas.NewIPAsset()
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Stores a new asset and prints it with its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.Struct(a); err != nil {
				return err
			}
			return withRecords(cmd, func(ctx context.Context, r schemas.Records) error {
				saved, err := r.SaveIPAsset(ctx, a)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	f := addCmd.Flags()
	f.StringVar(&a.WorkName, "name", "", "Name of the work (required)")
	f.StringVar(&a.WorkType, "type", "", "Kind of work, e.g. 视频")
	f.StringVar(&a.Owner, "owner", "", "Rights owner")
	f.StringVar(&a.Region, "region", a.Region, "Region where the right applies")
	f.StringVar(&a.WorkStartDate, "start", "", "Start of the right, YYYY-MM-DD")
	f.StringVar(&a.WorkEndDate, "end", "", "End of the right, YYYY-MM-DD")
	f.StringVar(&a.EquityType, "equity", a.EquityType, "Kind of right held")
	f.BoolVar(&a.IsAgent, "agent", false, "File as an authorized agent of the owner")
	f.StringVar(&a.AuthStartDate, "auth-start", "", "Start of the agent authorization, YYYY-MM-DD")
	f.StringVar(&a.AuthEndDate, "auth-end", "", "End of the agent authorization, YYYY-MM-DD")
	f.StringArrayVar(&a.AuthFiles, "auth-file", nil, "Authorization document, relative to the files root (repeatable)")
	f.StringArrayVar(&a.ProofFiles, "proof-file", nil, "Proof of ownership, relative to the files root (repeatable)")
	f.StringVar(&a.Status, "status", a.Status, "Certification status")
	assetCmd.AddCommand(addCmd)

	assetCmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Deletes an asset. Cases filed for it are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid asset id %q: %w", args[0], err)
			}
			return withRecords(cmd, func(ctx context.Context, r schemas.Records) error {
				deleted, err := r.DeleteIPAsset(ctx, id)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("asset %s not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted asset %s\n", id)
				return nil
			})
		},
	})

	return assetCmd
}

func newCasesCmd() *cobra.Command {
	var limit int
	casesCmd := &cobra.Command{
		Use:   "cases",
		Short: "Prints the recorded appeal attempts as JSON, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			return withRecords(cmd, func(ctx context.Context, r schemas.Records) error {
				cases, err := r.ListCases(ctx, limit)
				if err != nil {
					return err
				}
				if cases == nil {
					cases = []schemas.CaseRecord{}
				}
				return printJSON(cmd.OutOrStdout(), cases)
			})
		},
	}
	casesCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of cases to print")
	return casesCmd
}
