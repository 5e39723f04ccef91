package main

import (
	"fmt"
	"strings"

	"github.com/effective-security/toolrouter/events"
	"github.com/effective-security/toolrouter/model"
	"github.com/effective-security/toolrouter/utils"
	"github.com/spf13/cobra"
)

type suggestFlags struct {
	max              int
	minScore         float64
	category         string
	page             string
	preferTools      []string
	preferCategories []string
	rollback         bool
	verbose          bool
}

func newSuggestCmd(a *app) *cobra.Command {
	f := new(suggestFlags)
	cmd := &cobra.Command{
		Use:   "suggest <query...>",
		Short: "Print the tool suggestions for the query as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.suggest(cmd, strings.Join(args, " "), f)
		},
	}
	flags := cmd.Flags()
	flags.IntVarP(&f.max, "max", "n", 0, "maximum number of suggestions")
	flags.Float64Var(&f.minScore, "min-score", 0, "minimum score of a suggestion")
	flags.StringVar(&f.category, "category", "", "current application category")
	flags.StringVar(&f.page, "page", "", "current application page")
	flags.StringSliceVar(&f.preferTools, "prefer-tool", nil, "preferred tools")
	flags.StringSliceVar(&f.preferCategories, "prefer-category", nil, "preferred categories")
	flags.BoolVar(&f.rollback, "rollback", false, "rank by priority only")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "print router events to stderr")
	return cmd
}

func (f *suggestFlags) context() *model.Context {
	var c *model.Context
	if f.category != "" || f.page != "" {
		c = &model.Context{
			ApplicationState: &model.ApplicationState{
				CurrentCategory: f.category,
				CurrentPage:     f.page,
			},
		}
	}
	if len(f.preferTools) > 0 || len(f.preferCategories) > 0 {
		if c == nil {
			c = new(model.Context)
		}
		c.UserPreferences = &model.UserPreferences{
			PreferredTools:      f.preferTools,
			PreferredCategories: f.preferCategories,
		}
	}
	return c
}

func (a *app) suggest(cmd *cobra.Command, query string, f *suggestFlags) error {
	ctx := cmd.Context()

	reg, err := a.loadRegistry()
	if err != nil {
		return err
	}
	rc, err := a.cfg.RouterConfig()
	if err != nil {
		return err
	}
	cache, closeCache, err := a.newCache(ctx, rc)
	if err != nil {
		return err
	}
	defer closeCache()

	emitter := events.NewEmitter()
	if f.verbose {
		emitter.On(events.KindAll, events.NewPrinter(cmd.ErrOrStderr(), events.ModeVerbose))
	}

	r, err := a.newRouter(reg, cache, emitter)
	if err != nil {
		return err
	}
	if f.rollback {
		r.EnableEmergencyRollback(ctx, "requested by command line")
	}

	res, err := r.Suggest(ctx, &model.SuggestionRequest{
		Query:          query,
		Context:        f.context(),
		MaxSuggestions: f.max,
		MinScore:       f.minScore,
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), utils.ToJSONIndent(res))
	return err
}
