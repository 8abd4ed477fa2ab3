package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/prompt-library/internal/domain"
	"github.com/Clark-Hu/prompt-library/internal/remote"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List prompts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			prompts := a.store.Snapshot()
			if len(prompts) == 0 {
				fmt.Fprintln(out, "No prompts yet. Add one with: promptctl add --title <title> <content>")
				return nil
			}
			userID := a.store.UserID(cmd.Context())
			for i := len(prompts) - 1; i >= 0; i-- {
				printSummary(out, prompts[i], userID)
			}
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var title, file string
	cmd := &cobra.Command{
		Use:   "add [content...]",
		Short: "Add a prompt",
		Long: `Add a prompt. Content is taken from the arguments, from --file, or from
stdin when neither is given. A blank title becomes "Untitled".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd, args, file)
			if err != nil {
				return err
			}
			p, err := a.store.Create(cmd.Context(), title, content)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", p.ID, p.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "prompt title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from file (- for stdin)")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a prompt's full content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := a.store.Get(args[0])
			if !ok {
				return fmt.Errorf("no prompt with id %s", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s\n\n", p.Title, ratingLine(p, a.store.UserID(cmd.Context())))
			fmt.Fprintln(out, p.Content)
			return nil
		},
	}
}

func newRateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate <id> <stars>",
		Short: "Rate a prompt from 1 to 5 stars",
		Long: `Rate a prompt from 1 to 5 stars. Stars are rounded to the nearest whole
star and clamped into range, so "rate <id> -3" records 1 star. Flags must
come before <id>; everything after it is taken as a positional argument.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stars, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("%w: stars must be a number", domain.ErrInvalidInput)
			}
			if err := a.store.Rate(cmd.Context(), args[0], stars); err != nil {
				return err
			}
			p, ok := a.store.Get(args[0])
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "no prompt with id %s, nothing rated\n", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ratingLine(p, a.store.UserID(cmd.Context())))
			return nil
		},
	}
	// Negative stars would otherwise be parsed as shorthand flags.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a prompt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the user id ratings are recorded under",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.store.UserID(cmd.Context()))
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	var token string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "import <file|url>",
		Short: "Merge a JSON collection dump into the library",
		Long: `Merge a JSON array of prompts, such as a browser local-storage export or
another library's /export endpoint, into the library. Records are repaired
on the way in; ids already present are skipped. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if remote.IsURL(args[0]) {
				data, err = remote.NewHTTPClient(token, timeout, a.logger).Fetch(cmd.Context(), args[0])
			} else {
				data, err = readFileOrStdin(cmd, args[0])
			}
			if err != nil {
				return err
			}
			added, err := a.store.Import(cmd.Context(), data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d prompts\n", added)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token sent when importing from a URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "HTTP timeout when importing from a URL")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the library as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.store.Export(cmd.Context())
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func readContent(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", errors.New("give content either as arguments or with --file, not both")
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file != "":
		data, err := readFileOrStdin(cmd, file)
		return string(data), err
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
}

func readFileOrStdin(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printSummary(out io.Writer, p domain.Prompt, userID string) {
	fmt.Fprintf(out, "[%s] %s  %s\n", domain.Badge(p.Title), p.Title, p.ID)
	if preview := domain.Preview(p.Content); preview != "" {
		fmt.Fprintf(out, "    %s\n", preview)
	}
	fmt.Fprintf(out, "    %s\n", ratingLine(p, userID))
}

func ratingLine(p domain.Prompt, userID string) string {
	var b strings.Builder
	if p.TotalRatings == 0 {
		b.WriteString("not rated")
	} else {
		noun := "ratings"
		if p.TotalRatings == 1 {
			noun = "rating"
		}
		fmt.Fprintf(&b, "%s %.2f (%d %s)", stars(int(p.AverageRating+0.5)), p.AverageRating, p.TotalRatings, noun)
	}
	if mine, ok := p.RatingBy(userID); ok {
		fmt.Fprintf(&b, ", yours: %d", mine)
	}
	if p.CreatedAt > 0 {
		fmt.Fprintf(&b, ", added %s", p.Created().Local().Format(time.DateOnly))
	}
	return b.String()
}

func stars(n int) string {
	if n < domain.MinStars {
		n = domain.MinStars
	}
	if n > domain.MaxStars {
		n = domain.MaxStars
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", domain.MaxStars-n)
}
