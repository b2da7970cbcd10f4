package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iurnickita/abetos/internal/client"
)

type remoteOptions struct {
	Server   string
	Token    string
	Login    string
	Password string
}

// connect возвращает клиент API, выполнив вход, если токен не задан.
func (opts *remoteOptions) connect(ctx context.Context) (client.Client, error) {
	c := client.NewClient(opts.Server, opts.Token)
	if opts.Token == "" {
		if opts.Login == "" {
			return nil, fmt.Errorf("either --token or --login is required")
		}
		if err := c.Login(ctx, opts.Login, opts.Password); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
	}
	return c, nil
}

func NewRemoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &remoteOptions{}

	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Operator commands through the HTTP API",
	}
	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("ABETOS_SERVER", "http://localhost:8080"), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("ABETOS_TOKEN"), "bearer token")
	cmd.PersistentFlags().StringVar(&opts.Login, "login", os.Getenv("ABETOS_LOGIN"), "operator email or document")
	cmd.PersistentFlags().StringVar(&opts.Password, "password", os.Getenv("ABETOS_PASSWORD"), "operator password")

	cmd.AddCommand(&cobra.Command{
		Use:   "balance <doc-number>",
		Short: "Show a customer's profile and balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			profile, err := c.Profile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderProfile(cmd.OutOrStdout(), rootOpts.Format, rootOpts.printer(), profile)
		},
	})

	var req client.AccreditRequest
	var liters, amount, unitPrice string
	accrue := &cobra.Command{
		Use:   "accrue <doc-number>",
		Short: "Accrue points by document number using the points table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.DocNumber = args[0]
			var err error
			if req.Liters, err = parseDecimal("liters", liters); err != nil {
				return err
			}
			if req.Amount, err = parseDecimal("amount", amount); err != nil {
				return err
			}
			if req.UnitPrice, err = parseDecimal("unit-price", unitPrice); err != nil {
				return err
			}

			c, err := opts.connect(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := c.Accredit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return renderReceipt(cmd.OutOrStdout(), rootOpts.Format, rootOpts.printer(), receipt)
		},
	}
	accrue.Flags().StringVar(&req.ProductCode, "product", "", "product code")
	accrue.Flags().StringVar(&liters, "liters", "", "liters")
	accrue.Flags().StringVar(&amount, "amount", "", "purchase amount")
	accrue.Flags().StringVar(&unitPrice, "unit-price", "", "price per liter")
	accrue.Flags().StringVar(&req.PaymentMethod, "payment", "", "payment method")
	accrue.Flags().StringVar(&req.TicketNumber, "ticket", "", "ticket number")
	accrue.Flags().BoolVar(&req.PaidWithApp, "app", false, "paid with the app")
	accrue.MarkFlagRequired("product")
	cmd.AddCommand(accrue)

	return cmd
}

func parseDecimal(name, s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return decimal.NewNullDecimal(d), nil
}
