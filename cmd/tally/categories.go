package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kwestin/tally/internal/cli"
	"github.com/kwestin/tally/internal/common"
	"github.com/kwestin/tally/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage transaction categories",
	}

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())
	cmd.AddCommand(categoriesSeedCmd())
	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all active categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to load categories: %w", err)
			}
			if len(categories) == 0 {
				fmt.Println(cli.FormatInfo("No categories yet; run 'tally categories seed' to create defaults"))
				return nil
			}

			fmt.Println(cli.FormatTitle("Categories"))
			for _, category := range categories {
				fmt.Printf("  %s %-20s %s\n",
					cli.SubtleStyle.Render(category.ID[:8]),
					category.Name,
					cli.SubtleStyle.Render(string(category.Type)))
			}
			return nil
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			description, _ := cmd.Flags().GetString("description")
			categoryType, _ := cmd.Flags().GetString("type")

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.CreateCategory(ctx, args[0], description, model.CategoryType(categoryType))
			if err != nil {
				if errors.Is(err, common.ErrDuplicateEntry) {
					return fmt.Errorf("category %q already exists", args[0])
				}
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created category %s (%s)", category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().String("description", "", "category description")
	cmd.Flags().String("type", "expense", "category type (income, expense)")
	return cmd
}

// defaultCategories is the starter set created by the seed command.
var defaultCategories = []struct {
	name        string
	description string
	catType     model.CategoryType
}{
	{"Groceries", "Supermarkets and food stores", model.CategoryTypeExpense},
	{"Dining", "Restaurants, cafes, and takeout", model.CategoryTypeExpense},
	{"Transport", "Fuel, transit, parking, rideshare", model.CategoryTypeExpense},
	{"Utilities", "Power, water, internet, phone", model.CategoryTypeExpense},
	{"Housing", "Rent, mortgage, and home costs", model.CategoryTypeExpense},
	{"Entertainment", "Streaming, events, and hobbies", model.CategoryTypeExpense},
	{"Health", "Medical, pharmacy, and fitness", model.CategoryTypeExpense},
	{"Shopping", "Retail and online purchases", model.CategoryTypeExpense},
	{"Salary", "Wages and regular pay", model.CategoryTypeIncome},
	{"Interest", "Bank interest and dividends", model.CategoryTypeIncome},
	{"Other Income", "Refunds and miscellaneous income", model.CategoryTypeIncome},
}

func categoriesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default category set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			created := 0
			for _, seed := range defaultCategories {
				_, err := store.CreateCategory(ctx, seed.name, seed.description, seed.catType)
				if errors.Is(err, common.ErrDuplicateEntry) {
					continue
				}
				if err != nil {
					return fmt.Errorf("failed to create category %q: %w", seed.name, err)
				}
				created++
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Seeded %d categories", created)))
			return nil
		},
	}
}
