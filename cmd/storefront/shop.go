package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storefront/internal/appstate"
	"storefront/internal/domain"
	"storefront/internal/storefront"
)

func newProductsCmd(a *app) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "products [keyword]",
		Short: "Browse the catalogue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")
			res, err := a.client.Products(cmd.Context(), keyword, page)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPRICE\tIN STOCK")
			for _, p := range res.Products {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Price, p.CountInStock)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d\n", res.Page, res.Pages)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func newCartCmd(a *app) *cobra.Command {
	cart := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and change the cart",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List cart lines and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCart(cmd.OutOrStdout(), a.client.State().Cart)
		},
	}

	var qty int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product, replacing any existing line for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.Product(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.client.AddToCart(p, qty); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d x %s\n", qty, p.Name)
			return nil
		},
	}
	add.Flags().IntVar(&qty, "qty", 1, "quantity")

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.RemoveFromCart(args[0])
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every line, keeping address and payment method",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.ClearCart()
			return nil
		},
	}

	cart.AddCommand(show, add, remove, clearCmd)
	return cart
}

func printCart(w io.Writer, c appstate.Cart) error {
	if len(c.Items) == 0 {
		fmt.Fprintln(w, "Cart is empty")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
		for _, l := range c.Items {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n", l.ProductID, l.Name, l.Quantity, l.Price, l.Price*float64(l.Quantity))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		p := storefront.PricesFor(c)
		fmt.Fprintf(w, "items %.2f  shipping %.2f  tax %.2f  total %.2f\n", p.Items, p.Shipping, p.Tax, p.Total)
	}
	if c.ShippingAddress != (domain.ShippingAddress{}) {
		a := c.ShippingAddress
		fmt.Fprintf(w, "ship to: %s, %s %s, %s\n", a.Address, a.City, a.PostalCode, a.Country)
	}
	if c.PaymentMethod != "" {
		fmt.Fprintf(w, "payment: %s\n", c.PaymentMethod)
	}
	return nil
}

func newShippingCmd(a *app) *cobra.Command {
	var addr domain.ShippingAddress
	cmd := &cobra.Command{
		Use:   "shipping",
		Short: "Set the shipping address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.SaveShippingAddress(addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr.Address, "address", "", "street address")
	cmd.Flags().StringVar(&addr.City, "city", "", "city")
	cmd.Flags().StringVar(&addr.PostalCode, "postal-code", "", "postal code")
	cmd.Flags().StringVar(&addr.Country, "country", "", "country")
	for _, f := range []string{"address", "city", "postal-code", "country"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newPaymentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "payment <method>",
		Short: "Set the payment method, e.g. PayPal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.client.SavePaymentMethod(strings.TrimSpace(args[0]))
			return nil
		},
	}
}

func newCheckoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			o, err := a.client.CreateOrder(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed, total %.2f\n", o.ID, o.TotalPrice)
			return nil
		},
	}
}

func newOrdersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			orders, err := a.client.MyOrders(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tTOTAL\tPAID\tDELIVERED")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n",
					o.ID, o.CreatedAt.Format("2006-01-02"), o.TotalPrice,
					strconv.FormatBool(o.IsPaid), strconv.FormatBool(o.IsDelivered))
			}
			return tw.Flush()
		},
	}
}
